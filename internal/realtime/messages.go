package realtime

import (
	"time"

	"timeoff-manager/internal/domain"
)

// CloseCode es un codigo de cierre de aplicacion (rango 4000-4999).
type CloseCode int

const (
	CloseInvalidPayload CloseCode = 4001
	CloseUserRejected   CloseCode = 4002
	CloseTokenExpired   CloseCode = 4003
	CloseTokenInvalid   CloseCode = 4004
	CloseAuthError      CloseCode = 4005
)

// MessageType enumera los tipos de frame que entiende el servidor.
type MessageType int

const (
	MessageUnknown MessageType = iota
	MessagePing
	MessageGetConnectedUsers
)

func parseMessageType(raw string) MessageType {
	switch raw {
	case "ping":
		return MessagePing
	case "get_connected_users":
		return MessageGetConnectedUsers
	default:
		return MessageUnknown
	}
}

const (
	frameConnectionEstablished = "connection_established"
	framePong                  = "pong"
	frameConnectedUsers        = "connected_users"
	frameError                 = "error"
)

const (
	errInvalidJSON       = "Invalid JSON format"
	errRateLimited       = "Rate limit exceeded"
	errManagersOnly      = "Unauthorized: Only managers can view connected users"
	unknownMessagePrefix = "Unknown message type: "
)

type inboundFrame struct {
	Type string `json:"type"`
}

// UserInfo es la copia de la identidad guardada junto a la conexion.
type UserInfo struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// ConnectedUser es una fila del listado de conectados.
type ConnectedUser struct {
	UserID int64       `json:"user_id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}

type welcomeFrame struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	UserID   int64    `json:"user_id"`
	UserInfo UserInfo `json:"user_info"`
}

type pongFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type connectedUsersFrame struct {
	Type  string          `json:"type"`
	Users []ConnectedUser `json:"users"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Type: frameError, Message: message}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
