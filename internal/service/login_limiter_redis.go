package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const loginLimiterPrefix = "auth:login:"

// loginAttemptsScript suma un intento y devuelve {intentos, ms restantes de la ventana}.
// La ventana arranca con el primer intento y no se renueva con los siguientes.
const loginAttemptsScript = `
local attempts = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {attempts, ttl}
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisLoginLimiter struct {
	client      redisEvaler
	logger      *zap.Logger
	window      time.Duration
	maxAttempts int
}

// NewRedisLoginLimiter comparte el contador de intentos entre replicas.
func NewRedisLoginLimiter(client *redis.Client, logger *zap.Logger) LoginLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisLoginLimiter{
		client:      client,
		logger:      logger,
		window:      loginAttemptsWindow,
		maxAttempts: loginAttemptsMax,
	}
}

// Allow deja pasar si Redis falla; el bcrypt del login sigue frenando la fuerza bruta.
func (l *redisLoginLimiter) Allow(email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	email = normalizeEmail(email)
	if email == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	res, err := l.client.Eval(ctx, loginAttemptsScript, []string{loginLimiterPrefix + email}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("login limiter unavailable", zap.Error(err))
		return true
	}

	attempts, remaining := res[0], time.Duration(res[1])*time.Millisecond
	if attempts > int64(l.maxAttempts) {
		l.logger.Info("login attempts exceeded",
			zap.String("email", email),
			zap.Int64("attempts", attempts),
			zap.Duration("retry_after", remaining),
		)
		return false
	}
	return true
}
