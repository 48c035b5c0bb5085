package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"timeoff-manager/internal/domain"
)

type LeaveRequestRepository interface {
	Create(ctx context.Context, req domain.LeaveRequest) (domain.LeaveRequest, error)
	GetByID(ctx context.Context, id int64) (domain.LeaveRequest, error)
	ListAll(ctx context.Context) ([]domain.LeaveRequest, error)
	ListByUserID(ctx context.Context, userID int64) ([]domain.LeaveRequest, error)
	UpdateStatus(ctx context.Context, id int64, status domain.RequestStatus, reviewerID int64, comment string, at time.Time) error
}

type PgLeaveRequestRepository struct {
	db DBTX
}

func NewPgLeaveRequestRepository(db DBTX) *PgLeaveRequestRepository {
	return &PgLeaveRequestRepository{db: db}
}

const leaveRequestColumns = `id, user_id, request_type, start_date, end_date, start_datetime, end_datetime,
	reason, status, reviewed_by, reviewed_at, review_comment, created_at, updated_at`

func (r *PgLeaveRequestRepository) Create(ctx context.Context, req domain.LeaveRequest) (domain.LeaveRequest, error) {
	const query = `
		INSERT INTO leave_requests (user_id, request_type, start_date, end_date, start_datetime, end_datetime,
			reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		req.UserID,
		string(req.RequestType),
		dateArg(req.StartDate),
		dateArg(req.EndDate),
		req.StartDatetime,
		req.EndDatetime,
		req.Reason,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
	).Scan(&req.ID)
	if err != nil {
		return domain.LeaveRequest{}, err
	}
	return req, nil
}

func (r *PgLeaveRequestRepository) GetByID(ctx context.Context, id int64) (domain.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE id = $1`
	return scanLeaveRequest(r.db.QueryRow(ctx, query, id))
}

func (r *PgLeaveRequestRepository) ListAll(ctx context.Context) ([]domain.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *PgLeaveRequestRepository) ListByUserID(ctx context.Context, userID int64) ([]domain.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

// UpdateStatus solo modifica solicitudes pendientes; si no hay fila afectada devuelve pgx.ErrNoRows.
func (r *PgLeaveRequestRepository) UpdateStatus(ctx context.Context, id int64, status domain.RequestStatus, reviewerID int64, comment string, at time.Time) error {
	const query = `
		UPDATE leave_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_comment = $5, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	var reviewComment interface{}
	if comment != "" {
		reviewComment = comment
	}
	tag, err := r.db.Exec(ctx, query, id, string(status), reviewerID, at, reviewComment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgLeaveRequestRepository) list(ctx context.Context, query string, args ...any) ([]domain.LeaveRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []domain.LeaveRequest{}
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func scanLeaveRequest(row pgx.Row) (domain.LeaveRequest, error) {
	var (
		req           domain.LeaveRequest
		requestType   string
		status        string
		startDate     *time.Time
		endDate       *time.Time
		reason        *string
		reviewComment *string
	)
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&requestType,
		&startDate,
		&endDate,
		&req.StartDatetime,
		&req.EndDatetime,
		&reason,
		&status,
		&req.ReviewedBy,
		&req.ReviewedAt,
		&reviewComment,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return domain.LeaveRequest{}, err
	}
	req.RequestType = domain.RequestType(requestType)
	req.Status = domain.RequestStatus(status)
	if startDate != nil {
		d := domain.NewDate(*startDate)
		req.StartDate = &d
	}
	if endDate != nil {
		d := domain.NewDate(*endDate)
		req.EndDate = &d
	}
	if reason != nil {
		req.Reason = *reason
	}
	if reviewComment != nil {
		req.ReviewComment = *reviewComment
	}
	return req, nil
}

func dateArg(d *domain.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.Time
}
