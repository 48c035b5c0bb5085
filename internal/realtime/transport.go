package realtime

import (
	"context"

	"github.com/coder/websocket"
)

// Transport es un canal bidireccional de frames de texto.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code CloseCode, reason string) error
}

type wsTransport struct {
	conn *websocket.Conn
}

// NewWebSocketTransport adapta una conexion ya aceptada.
func NewWebSocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code CloseCode, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}
