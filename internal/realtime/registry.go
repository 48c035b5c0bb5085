package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"timeoff-manager/internal/domain"
	"timeoff-manager/internal/service"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultInboundRate  = 20
	defaultInboundBurst = 40

	// CloseGoingAway se usa al apagar el servidor.
	CloseGoingAway CloseCode = 1001
)

// Authenticator resuelve un token de sesion a una identidad vigente.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

type Options struct {
	WriteTimeout time.Duration
	InboundRate  rate.Limit
	InboundBurst int
}

// HandshakeError describe un handshake rechazado y el cierre enviado al cliente.
type HandshakeError struct {
	Code   CloseCode
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake rejected (%d %s): %v", e.Code, e.Reason, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Connection es una conexion autenticada y registrada.
type Connection struct {
	id        string
	identity  domain.Identity
	transport Transport
	limiter   *rate.Limiter

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Identity() domain.Identity {
	return c.identity
}

func (c *Connection) write(ctx context.Context, data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return c.transport.Write(wctx, data)
}

func (c *Connection) close(code CloseCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.transport.Close(code, reason)
	})
}

// Registry mantiene como maximo una conexion viva por identidad.
type Registry struct {
	logger *zap.Logger
	auth   Authenticator
	opts   Options
	now    func() time.Time

	mu    sync.RWMutex
	conns map[int64]*Connection
}

func NewRegistry(logger *zap.Logger, auth Authenticator, opts Options) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.InboundRate <= 0 {
		opts.InboundRate = defaultInboundRate
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = defaultInboundBurst
	}
	return &Registry{
		logger: logger,
		auth:   auth,
		opts:   opts,
		now:    time.Now,
		conns:  make(map[int64]*Connection),
	}
}

// Serve autentica, registra y atiende la conexion hasta que se cierre.
func (r *Registry) Serve(ctx context.Context, t Transport, token string) error {
	conn, err := r.Connect(ctx, t, token)
	if err != nil {
		return err
	}
	defer r.release(conn)

	for {
		data, err := t.Read(ctx)
		if err != nil {
			r.logger.Debug("connection closed",
				zap.Int64("user_id", conn.identity.ID),
				zap.String("connection_id", conn.id),
				zap.Error(err),
			)
			return nil
		}
		r.handleFrame(ctx, conn, data)
	}
}

// Connect valida el token y registra la conexion; ante un fallo cierra el
// transporte con el codigo correspondiente y no toca el registro.
func (r *Registry) Connect(ctx context.Context, t Transport, token string) (*Connection, error) {
	if r.auth == nil {
		return nil, r.reject(t, CloseAuthError, "Authentication error", errors.New("registry has no authenticator"))
	}

	identity, err := r.auth.Authenticate(ctx, token)
	if err != nil {
		code, reason := closeFor(err)
		return nil, r.reject(t, code, reason, err)
	}

	conn := &Connection{
		id:        uuid.NewString(),
		identity:  identity,
		transport: t,
		limiter:   rate.NewLimiter(r.opts.InboundRate, r.opts.InboundBurst),
	}
	r.register(conn)

	welcome := welcomeFrame{
		Type:    frameConnectionEstablished,
		Message: fmt.Sprintf("Welcome %s! You are now connected.", identity.Name),
		UserID:  identity.ID,
		UserInfo: UserInfo{
			Name:  identity.Name,
			Email: identity.Email,
			Role:  identity.Role,
		},
	}
	if !r.deliver(ctx, conn, welcome) {
		return nil, fmt.Errorf("send welcome to user %d failed", identity.ID)
	}
	return conn, nil
}

func (r *Registry) reject(t Transport, code CloseCode, reason string, err error) error {
	recordRejection(code)
	r.logger.Info("handshake rejected", zap.Int("code", int(code)), zap.String("reason", reason), zap.Error(err))
	if closeErr := t.Close(code, reason); closeErr != nil {
		r.logger.Debug("close rejected transport failed", zap.Error(closeErr))
	}
	return &HandshakeError{Code: code, Reason: reason, Err: err}
}

func closeFor(err error) (CloseCode, string) {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return CloseTokenExpired, "Token expired"
	case errors.Is(err, service.ErrTokenPayload):
		return CloseInvalidPayload, "Invalid token"
	case errors.Is(err, service.ErrTokenInvalid):
		return CloseTokenInvalid, "Invalid token"
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrAccountNotValidated):
		return CloseUserRejected, "User not found or not validated"
	default:
		return CloseAuthError, "Authentication error"
	}
}

func (r *Registry) register(conn *Connection) {
	r.mu.Lock()
	prev, replaced := r.conns[conn.identity.ID]
	r.conns[conn.identity.ID] = conn
	n := len(r.conns)
	r.mu.Unlock()

	ConnectedUsers.Set(float64(n))
	fields := []zap.Field{
		zap.Int64("user_id", conn.identity.ID),
		zap.String("connection_id", conn.id),
	}
	if replaced {
		fields = append(fields, zap.String("replaced_connection_id", prev.id))
	}
	r.logger.Info("connection registered", fields...)
}

// release quita la entrada solo si sigue perteneciendo a esta conexion.
func (r *Registry) release(conn *Connection) {
	r.mu.Lock()
	current, ok := r.conns[conn.identity.ID]
	removed := ok && current == conn
	if removed {
		delete(r.conns, conn.identity.ID)
	}
	n := len(r.conns)
	r.mu.Unlock()

	if removed {
		ConnectedUsers.Set(float64(n))
		r.logger.Info("connection released",
			zap.Int64("user_id", conn.identity.ID),
			zap.String("connection_id", conn.id),
		)
	}
}

// Disconnect elimina la entrada de la identidad; es idempotente.
func (r *Registry) Disconnect(userID int64) {
	r.mu.Lock()
	_, ok := r.conns[userID]
	delete(r.conns, userID)
	n := len(r.conns)
	r.mu.Unlock()

	if ok {
		ConnectedUsers.Set(float64(n))
	}
}

// CloseAll cierra todas las conexiones; cada bucle de lectura limpia su entrada.
func (r *Registry) CloseAll(reason string) {
	for _, conn := range r.snapshot(nil) {
		conn.close(CloseGoingAway, reason)
	}
}

func (r *Registry) handleFrame(ctx context.Context, conn *Connection, data []byte) {
	if !conn.limiter.Allow() {
		r.deliver(ctx, conn, newErrorFrame(errRateLimited))
		return
	}

	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		r.deliver(ctx, conn, newErrorFrame(errInvalidJSON))
		return
	}

	switch parseMessageType(in.Type) {
	case MessagePing:
		r.deliver(ctx, conn, pongFrame{Type: framePong, Timestamp: timestamp(r.now())})
	case MessageGetConnectedUsers:
		if !conn.identity.IsManager() {
			r.deliver(ctx, conn, newErrorFrame(errManagersOnly))
			return
		}
		r.deliver(ctx, conn, connectedUsersFrame{Type: frameConnectedUsers, Users: r.ListConnected()})
	default:
		r.deliver(ctx, conn, newErrorFrame(unknownMessagePrefix+in.Type))
	}
}

// deliver escribe un frame; si falla, el destinatario sale del registro.
func (r *Registry) deliver(ctx context.Context, conn *Connection, msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encode frame failed", zap.Error(err))
		return false
	}
	if err := conn.write(ctx, data, r.opts.WriteTimeout); err != nil {
		recordDelivery(false)
		r.logger.Warn("deliver frame failed",
			zap.Int64("user_id", conn.identity.ID),
			zap.String("connection_id", conn.id),
			zap.Error(err),
		)
		r.release(conn)
		return false
	}
	recordDelivery(true)
	return true
}

func (r *Registry) lookup(userID int64) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

func (r *Registry) snapshot(keep func(*Connection) bool) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if keep == nil || keep(conn) {
			out = append(out, conn)
		}
	}
	return out
}

// SendToUser entrega msg a la conexion registrada del usuario, si existe.
func (r *Registry) SendToUser(ctx context.Context, userID int64, msg any) {
	conn, ok := r.lookup(userID)
	if !ok {
		return
	}
	r.deliver(ctx, conn, msg)
}

func (r *Registry) SendNotification(ctx context.Context, userID int64, notificationType string, data map[string]any) {
	ts, _ := data["timestamp"].(string)
	if ts == "" {
		ts = timestamp(r.now())
	}
	r.SendToUser(ctx, userID, domain.Notification{
		Type:             domain.MessageTypeNotification,
		NotificationType: notificationType,
		Data:             data,
		Timestamp:        ts,
	})
}

func (r *Registry) BroadcastToManagers(ctx context.Context, msg any) {
	managers := r.snapshot(func(c *Connection) bool { return c.identity.IsManager() })
	for _, conn := range managers {
		r.deliver(ctx, conn, msg)
	}
}

func (r *Registry) BroadcastToAll(ctx context.Context, msg any) {
	for _, conn := range r.snapshot(nil) {
		r.deliver(ctx, conn, msg)
	}
}

// ListConnected devuelve los conectados ordenados por user_id.
func (r *Registry) ListConnected() []ConnectedUser {
	conns := r.snapshot(nil)
	users := make([]ConnectedUser, 0, len(conns))
	for _, conn := range conns {
		users = append(users, ConnectedUser{
			UserID: conn.identity.ID,
			Name:   conn.identity.Name,
			Email:  conn.identity.Email,
			Role:   conn.identity.Role,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) IsConnected(userID int64) bool {
	_, ok := r.lookup(userID)
	return ok
}
