package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"timeoff-manager/internal/domain"
)

type mockLeaveRequestRepo struct {
	nextID    int64
	requests  map[int64]domain.LeaveRequest
	updateErr error
}

func newMockLeaveRequestRepo() *mockLeaveRequestRepo {
	return &mockLeaveRequestRepo{nextID: 1, requests: make(map[int64]domain.LeaveRequest)}
}

func (m *mockLeaveRequestRepo) Create(_ context.Context, req domain.LeaveRequest) (domain.LeaveRequest, error) {
	req.ID = m.nextID
	m.nextID++
	m.requests[req.ID] = req
	return req, nil
}

func (m *mockLeaveRequestRepo) GetByID(_ context.Context, id int64) (domain.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return domain.LeaveRequest{}, pgx.ErrNoRows
	}
	return req, nil
}

func (m *mockLeaveRequestRepo) ListAll(_ context.Context) ([]domain.LeaveRequest, error) {
	out := []domain.LeaveRequest{}
	for id := int64(1); id < m.nextID; id++ {
		if req, ok := m.requests[id]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *mockLeaveRequestRepo) ListByUserID(ctx context.Context, userID int64) ([]domain.LeaveRequest, error) {
	all, _ := m.ListAll(ctx)
	out := []domain.LeaveRequest{}
	for _, req := range all {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *mockLeaveRequestRepo) UpdateStatus(_ context.Context, id int64, status domain.RequestStatus, reviewerID int64, comment string, at time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	req, ok := m.requests[id]
	if !ok || req.Status != domain.StatusPending {
		return pgx.ErrNoRows
	}
	req.Status = status
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &at
	req.ReviewComment = comment
	m.requests[id] = req
	return nil
}

type sentNotification struct {
	userID           int64
	notificationType string
	data             map[string]any
}

type mockNotifier struct {
	mu         sync.Mutex
	sent       []sentNotification
	broadcasts []any
}

func (m *mockNotifier) SendNotification(_ context.Context, userID int64, notificationType string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{userID: userID, notificationType: notificationType, data: data})
}

func (m *mockNotifier) BroadcastToManagers(_ context.Context, message any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, message)
}

var (
	testManager = domain.Identity{ID: 1, Name: "Mara", Email: "mara@example.com", Role: domain.RoleManager}
	testMember  = domain.Identity{ID: 2, Name: "Nico", Email: "nico@example.com", Role: domain.RoleMember}
	otherMember = domain.Identity{ID: 3, Name: "Olga", Email: "olga@example.com", Role: domain.RoleMember}
)

func newTestLeaveService() (*LeaveRequestService, *mockLeaveRequestRepo, *mockNotifier) {
	users := newMockUserRepo()
	users.add(domain.User{ID: testManager.ID, Name: testManager.Name, Email: testManager.Email, Role: domain.RoleManager, Validated: true})
	users.add(domain.User{ID: testMember.ID, Name: testMember.Name, Email: testMember.Email, Role: domain.RoleMember, Validated: true})
	users.add(domain.User{ID: otherMember.ID, Name: otherMember.Name, Email: otherMember.Email, Role: domain.RoleMember, Validated: true})
	repo := newMockLeaveRequestRepo()
	notifier := &mockNotifier{}
	return NewLeaveRequestService(zap.NewNop(), repo, users, notifier), repo, notifier
}

func TestLeaveRequestServiceCreateTimeoff(t *testing.T) {
	svc, _, notifier := newTestLeaveService()

	req, err := svc.Create(context.Background(), testMember, CreateLeaveRequestInput{
		RequestType: "timeoff",
		StartDate:   "2025-07-01",
		EndDate:     "2025-07-05",
		Reason:      "vacation",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.ID == 0 || req.Status != domain.StatusPending || req.UserID != testMember.ID {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.StartDate.String() != "2025-07-01" || req.EndDate.String() != "2025-07-05" {
		t.Fatalf("unexpected dates: %v %v", req.StartDate, req.EndDate)
	}

	if len(notifier.broadcasts) != 1 {
		t.Fatalf("expected one manager broadcast, got %d", len(notifier.broadcasts))
	}
	msg, ok := notifier.broadcasts[0].(domain.Notification)
	if !ok {
		t.Fatalf("expected domain.Notification, got %T", notifier.broadcasts[0])
	}
	if msg.Type != domain.MessageTypeManagerNotification || msg.NotificationType != domain.NotificationNewLeaveRequest {
		t.Fatalf("unexpected broadcast: %+v", msg)
	}
	if msg.Data["user_name"] != "Nico" || msg.Data["request_id"] != req.ID {
		t.Fatalf("unexpected broadcast data: %+v", msg.Data)
	}
}

func TestLeaveRequestServiceCreatePermission(t *testing.T) {
	svc, _, _ := newTestLeaveService()

	req, err := svc.Create(context.Background(), testMember, CreateLeaveRequestInput{
		RequestType:   "permission",
		StartDatetime: "2025-07-01T09:00:00Z",
		EndDatetime:   "2025-07-01T11:00:00+00:00",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.RequestType != domain.RequestTypePermission || req.StartDatetime == nil || req.EndDatetime == nil {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.StartDate != nil || req.EndDate != nil {
		t.Fatalf("permission request must not carry dates")
	}
}

func TestLeaveRequestServiceCreateValidation(t *testing.T) {
	svc, repo, notifier := newTestLeaveService()
	cases := map[string]CreateLeaveRequestInput{
		"unknown type":           {RequestType: "sabbatical", StartDate: "2025-07-01", EndDate: "2025-07-02"},
		"timeoff missing end":    {RequestType: "timeoff", StartDate: "2025-07-01"},
		"timeoff bad format":     {RequestType: "timeoff", StartDate: "01/07/2025", EndDate: "2025-07-02"},
		"timeoff reversed":       {RequestType: "timeoff", StartDate: "2025-07-05", EndDate: "2025-07-01"},
		"permission missing":     {RequestType: "permission", StartDatetime: "2025-07-01T09:00:00Z"},
		"permission with dates":  {RequestType: "permission", StartDate: "2025-07-01", EndDate: "2025-07-02"},
		"permission not ordered": {RequestType: "permission", StartDatetime: "2025-07-01T09:00:00Z", EndDatetime: "2025-07-01T09:00:00Z"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), testMember, input); !errors.Is(err, ErrInvalidLeaveRequest) {
				t.Fatalf("expected ErrInvalidLeaveRequest, got %v", err)
			}
		})
	}
	if len(repo.requests) != 0 || len(notifier.broadcasts) != 0 {
		t.Fatalf("invalid requests must not be stored or broadcast")
	}
}

func TestLeaveRequestServiceListScopesByRole(t *testing.T) {
	svc, _, _ := newTestLeaveService()
	for _, who := range []domain.Identity{testMember, otherMember, testMember} {
		if _, err := svc.Create(context.Background(), who, CreateLeaveRequestInput{RequestType: "timeoff", StartDate: "2025-07-01", EndDate: "2025-07-01"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := svc.List(context.Background(), testManager)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected manager to see 3 requests, got %d (%v)", len(all), err)
	}
	own, err := svc.List(context.Background(), testMember)
	if err != nil || len(own) != 2 {
		t.Fatalf("expected member to see 2 requests, got %d (%v)", len(own), err)
	}
	for _, req := range own {
		if req.UserID != testMember.ID {
			t.Fatalf("member saw foreign request %+v", req)
		}
	}
}

func TestLeaveRequestServiceUpdateStatus(t *testing.T) {
	svc, repo, notifier := newTestLeaveService()
	req, err := svc.Create(context.Background(), testMember, CreateLeaveRequestInput{RequestType: "timeoff", StartDate: "2025-07-01", EndDate: "2025-07-02"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), testManager, req.ID, "approved", " enjoy ")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusApproved || updated.ReviewedBy == nil || *updated.ReviewedBy != testManager.ID || updated.ReviewedAt == nil {
		t.Fatalf("unexpected updated request: %+v", updated)
	}
	if updated.ReviewComment != "enjoy" {
		t.Fatalf("expected trimmed comment, got %q", updated.ReviewComment)
	}
	if repo.requests[req.ID].Status != domain.StatusApproved {
		t.Fatalf("expected stored status approved")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected owner notification, got %d", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.userID != testMember.ID || sent.notificationType != domain.NotificationLeaveRequestChanged || sent.data["status"] != "approved" {
		t.Fatalf("unexpected owner notification: %+v", sent)
	}
	if len(notifier.broadcasts) != 2 {
		t.Fatalf("expected create and update broadcasts, got %d", len(notifier.broadcasts))
	}
	last := notifier.broadcasts[1].(domain.Notification)
	if last.NotificationType != domain.NotificationLeaveRequestChanged {
		t.Fatalf("unexpected manager broadcast: %+v", last)
	}

	if _, err := svc.UpdateStatus(context.Background(), testManager, req.ID, "rejected", ""); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestLeaveRequestServiceUpdateStatusErrors(t *testing.T) {
	svc, repo, notifier := newTestLeaveService()
	req, err := svc.Create(context.Background(), testMember, CreateLeaveRequestInput{RequestType: "timeoff", StartDate: "2025-07-01", EndDate: "2025-07-02"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), testMember, req.ID, "approved", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), testManager, req.ID, "pending", ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), testManager, 999, "approved", ""); !errors.Is(err, ErrLeaveRequestNotFound) {
		t.Fatalf("expected ErrLeaveRequestNotFound, got %v", err)
	}

	repo.updateErr = pgx.ErrNoRows
	if _, err := svc.UpdateStatus(context.Background(), testManager, req.ID, "approved", ""); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected lost race to report ErrAlreadyProcessed, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("failed updates must not notify")
	}
}
