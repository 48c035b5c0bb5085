package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers agrupa los handlers que expone el router.
type Handlers struct {
	User  *UserHandler
	Leave *LeaveRequestHandler
	WS    *WSHandler
	// Google es opcional; sin el las rutas /google responden 500.
	Google *GoogleHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, sessions SessionAuthenticator, allowedOrigins []string, h Handlers) *gin.Engine {
	r := gin.New()

	r.Use(
		zapLoggerMiddleware(logger),
		gin.Recovery(),
		corsMiddleware(allowedOrigins),
		jsonContentTypeMiddleware(),
		SessionGate(logger, sessions),
	)

	r.GET("/", Root)
	r.GET("/health", Health)
	r.GET("/openapi.json", OpenAPI)
	r.GET("/docs", Docs)
	r.GET("/redoc", Redoc)

	r.POST("/login", h.User.Login)
	r.POST("/register", h.User.Register)
	r.POST("/register_confirm", h.User.ConfirmRegistration)
	r.GET("/register_confirm", h.User.ConfirmRegistration)
	r.GET("/profile", h.User.Profile)

	google := h.Google
	if google == nil {
		google = NewGoogleHandler(logger, nil, nil, "")
	}
	r.GET("/google/auth-url", google.AuthURL)
	r.GET("/google/login", google.Login)
	r.GET("/google/callback", google.Callback)

	leave := r.Group("/leave_requests")
	leave.GET("", h.Leave.List)
	leave.POST("", h.Leave.Create)
	leave.PUT("/:id/status", h.Leave.UpdateStatus)

	r.GET(wsPath, h.WS.Connect)
	r.GET("/ws/status", h.WS.Status)

	return r
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = allowedOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	return cors.New(cfg)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json salvo en el upgrade de /ws.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path != wsPath {
			c.Writer.Header().Set("Content-Type", "application/json")
		}
		c.Next()
	}
}
