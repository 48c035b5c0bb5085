package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timeoff-manager/internal/realtime"
)

// WSHandler atiende el upgrade de /ws y el estado del registro.
type WSHandler struct {
	logger         *zap.Logger
	registry       *realtime.Registry
	originPatterns []string
}

func NewWSHandler(logger *zap.Logger, registry *realtime.Registry, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		logger:         logger,
		registry:       registry,
		originPatterns: originPatterns(allowedOrigins),
	}
}

// originPatterns convierte origenes CORS en hosts para el handshake.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

// Connect maneja GET /ws?token=<jwt>. El token viaja en la query porque los
// navegadores no envian cabeceras en el upgrade.
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := websocket.Accept(upgradeWriter(c), c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	transport := realtime.NewWebSocketTransport(conn)
	if err := h.registry.Serve(c.Request.Context(), transport, c.Query("token")); err != nil {
		h.logger.Info("websocket handshake rejected", zap.Error(err), zap.String("client_ip", c.ClientIP()))
	}
}

// upgradeWriter devuelve el writer de net/http que envuelve gin. El Hijack de
// gin falla si las cabeceras ya se escribieron, y Accept las escribe antes.
func upgradeWriter(c *gin.Context) http.ResponseWriter {
	if u, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return c.Writer
}

// Status maneja GET /ws/status.
func (h *WSHandler) Status(c *gin.Context) {
	users := h.registry.ListConnected()
	c.JSON(http.StatusOK, gin.H{
		"connected_users_count": len(users),
		"connected_users":       users,
		"status":                "WebSocket endpoint is running",
	})
}
