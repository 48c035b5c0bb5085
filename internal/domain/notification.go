package domain

// Tipos de notificacion que viajan por el canal en tiempo real.
const (
	NotificationNewLeaveRequest     = "new_leave_request"
	NotificationLeaveRequestChanged = "leave_request_status_changed"
)

const (
	MessageTypeNotification        = "notification"
	MessageTypeManagerNotification = "manager_notification"
)

// Notification es el payload de eventos de negocio entregados a un usuario.
type Notification struct {
	Type             string         `json:"type"`
	NotificationType string         `json:"notification_type"`
	Data             map[string]any `json:"data"`
	Timestamp        string         `json:"timestamp"`
}
