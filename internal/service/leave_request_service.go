package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"timeoff-manager/internal/domain"
	"timeoff-manager/internal/repository"
)

var (
	ErrInvalidLeaveRequest  = errors.New("invalid leave request")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrForbidden            = errors.New("forbidden")
	ErrLeaveRequestNotFound = errors.New("leave request not found")
	ErrAlreadyProcessed     = errors.New("leave request already processed")
)

// Notifier entrega eventos en tiempo real sin devolver errores al llamador.
type Notifier interface {
	SendNotification(ctx context.Context, userID int64, notificationType string, data map[string]any)
	BroadcastToManagers(ctx context.Context, message any)
}

type noopNotifier struct{}

func (noopNotifier) SendNotification(context.Context, int64, string, map[string]any) {}
func (noopNotifier) BroadcastToManagers(context.Context, any) {}

// LeaveRequestService aplica las reglas de solicitudes de ausencia.
type LeaveRequestService struct {
	logger   *zap.Logger
	requests repository.LeaveRequestRepository
	users    repository.UserRepository
	notifier Notifier
	now      func() time.Time
}

func NewLeaveRequestService(logger *zap.Logger, requests repository.LeaveRequestRepository, users repository.UserRepository, notifier Notifier) *LeaveRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &LeaveRequestService{
		logger:   logger,
		requests: requests,
		users:    users,
		notifier: notifier,
		now:      time.Now,
	}
}

type CreateLeaveRequestInput struct {
	RequestType   string
	StartDate     string
	EndDate       string
	StartDatetime string
	EndDatetime   string
	Reason        string
}

// List devuelve todas las solicitudes a un manager y solo las propias al resto.
func (s *LeaveRequestService) List(ctx context.Context, actor domain.Identity) ([]domain.LeaveRequest, error) {
	if s.requests == nil {
		return nil, errors.New("leave request service not configured")
	}
	if actor.IsManager() {
		return s.requests.ListAll(ctx)
	}
	return s.requests.ListByUserID(ctx, actor.ID)
}

func (s *LeaveRequestService) Create(ctx context.Context, actor domain.Identity, input CreateLeaveRequestInput) (domain.LeaveRequest, error) {
	if s.requests == nil {
		return domain.LeaveRequest{}, errors.New("leave request service not configured")
	}

	now := s.now().UTC()
	req := domain.LeaveRequest{
		UserID:    actor.ID,
		Reason:    strings.TrimSpace(input.Reason),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch domain.RequestType(strings.TrimSpace(input.RequestType)) {
	case domain.RequestTypeTimeoff:
		start, end, err := parseDateRange(input.StartDate, input.EndDate)
		if err != nil {
			return domain.LeaveRequest{}, err
		}
		req.RequestType = domain.RequestTypeTimeoff
		req.StartDate = &start
		req.EndDate = &end
	case domain.RequestTypePermission:
		start, end, err := parseDatetimeRange(input.StartDatetime, input.EndDatetime)
		if err != nil {
			return domain.LeaveRequest{}, err
		}
		req.RequestType = domain.RequestTypePermission
		req.StartDatetime = &start
		req.EndDatetime = &end
	default:
		return domain.LeaveRequest{}, fmt.Errorf("%w: request_type must be timeoff or permission", ErrInvalidLeaveRequest)
	}

	created, err := s.requests.Create(ctx, req)
	if err != nil {
		return domain.LeaveRequest{}, err
	}

	s.notifier.BroadcastToManagers(ctx, domain.Notification{
		Type:             domain.MessageTypeManagerNotification,
		NotificationType: domain.NotificationNewLeaveRequest,
		Data:             s.notificationData(ctx, created, actor.Name),
		Timestamp:        now.Format(time.RFC3339),
	})
	return created, nil
}

// UpdateStatus aprueba o rechaza una solicitud pendiente.
func (s *LeaveRequestService) UpdateStatus(ctx context.Context, actor domain.Identity, id int64, status, comment string) (domain.LeaveRequest, error) {
	if s.requests == nil {
		return domain.LeaveRequest{}, errors.New("leave request service not configured")
	}
	if !actor.IsManager() {
		return domain.LeaveRequest{}, ErrForbidden
	}

	newStatus := domain.RequestStatus(strings.ToLower(strings.TrimSpace(status)))
	if newStatus != domain.StatusApproved && newStatus != domain.StatusRejected {
		return domain.LeaveRequest{}, ErrInvalidStatus
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LeaveRequest{}, ErrLeaveRequestNotFound
		}
		return domain.LeaveRequest{}, err
	}
	if !req.IsPending() {
		return domain.LeaveRequest{}, ErrAlreadyProcessed
	}

	now := s.now().UTC()
	comment = strings.TrimSpace(comment)
	if err := s.requests.UpdateStatus(ctx, id, newStatus, actor.ID, comment, now); err != nil {
		// Otra revision gano la carrera entre la lectura y la escritura.
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LeaveRequest{}, ErrAlreadyProcessed
		}
		return domain.LeaveRequest{}, err
	}

	reviewer := actor.ID
	req.Status = newStatus
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &now
	req.ReviewComment = comment
	req.UpdatedAt = now

	data := s.notificationData(ctx, req, "")
	data["reviewed_by"] = actor.ID
	data["reviewer_name"] = actor.Name
	data["timestamp"] = now.Format(time.RFC3339)

	s.notifier.SendNotification(ctx, req.UserID, domain.NotificationLeaveRequestChanged, data)
	s.notifier.BroadcastToManagers(ctx, domain.Notification{
		Type:             domain.MessageTypeManagerNotification,
		NotificationType: domain.NotificationLeaveRequestChanged,
		Data:             data,
		Timestamp:        now.Format(time.RFC3339),
	})
	return req, nil
}

func (s *LeaveRequestService) notificationData(ctx context.Context, req domain.LeaveRequest, ownerName string) map[string]any {
	if ownerName == "" && s.users != nil {
		owner, err := s.users.GetByID(ctx, req.UserID)
		if err != nil {
			s.logger.Warn("lookup leave request owner failed", zap.Error(err), zap.Int64("user_id", req.UserID))
		} else {
			ownerName = owner.Name
		}
	}

	data := map[string]any{
		"request_id":   req.ID,
		"user_id":      req.UserID,
		"user_name":    ownerName,
		"request_type": string(req.RequestType),
		"status":       string(req.Status),
		"reason":       req.Reason,
	}
	if req.StartDate != nil && req.EndDate != nil {
		data["start_date"] = req.StartDate.String()
		data["end_date"] = req.EndDate.String()
	}
	if req.StartDatetime != nil && req.EndDatetime != nil {
		data["start_datetime"] = req.StartDatetime.UTC().Format(time.RFC3339)
		data["end_datetime"] = req.EndDatetime.UTC().Format(time.RFC3339)
	}
	if req.ReviewComment != "" {
		data["review_comment"] = req.ReviewComment
	}
	return data
}

func parseDateRange(startRaw, endRaw string) (domain.Date, domain.Date, error) {
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" || endRaw == "" {
		return domain.Date{}, domain.Date{}, fmt.Errorf("%w: start_date and end_date are required for timeoff requests", ErrInvalidLeaveRequest)
	}
	start, err := domain.ParseDate(startRaw)
	if err != nil {
		return domain.Date{}, domain.Date{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidLeaveRequest)
	}
	end, err := domain.ParseDate(endRaw)
	if err != nil {
		return domain.Date{}, domain.Date{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidLeaveRequest)
	}
	if end.Before(start.Time) {
		return domain.Date{}, domain.Date{}, fmt.Errorf("%w: end_date must not be before start_date", ErrInvalidLeaveRequest)
	}
	return start, end, nil
}

func parseDatetimeRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_datetime and end_datetime are required for permission requests", ErrInvalidLeaveRequest)
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_datetime must be RFC3339", ErrInvalidLeaveRequest)
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_datetime must be RFC3339", ErrInvalidLeaveRequest)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_datetime must be after start_datetime", ErrInvalidLeaveRequest)
	}
	return start.UTC(), end.UTC(), nil
}
