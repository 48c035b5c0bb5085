package domain

import "time"

type RequestType string

const (
	RequestTypeTimeoff    RequestType = "timeoff"
	RequestTypePermission RequestType = "permission"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// LeaveRequest cubre tanto dias completos (timeoff) como permisos por horas.
type LeaveRequest struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	RequestType   RequestType   `json:"request_type"`
	StartDate     *Date         `json:"start_date,omitempty"`
	EndDate       *Date         `json:"end_date,omitempty"`
	StartDatetime *time.Time    `json:"start_datetime,omitempty"`
	EndDatetime   *time.Time    `json:"end_datetime,omitempty"`
	Reason        string        `json:"reason"`
	Status        RequestStatus `json:"status"`
	ReviewedBy    *int64        `json:"reviewed_by"`
	ReviewedAt    *time.Time    `json:"reviewed_at"`
	ReviewComment string        `json:"review_comment,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (r LeaveRequest) IsPending() bool {
	return r.Status == StatusPending
}
