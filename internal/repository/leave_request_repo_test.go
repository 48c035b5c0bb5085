package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"timeoff-manager/internal/domain"
)

var leaveRowColumns = []string{
	"id", "user_id", "request_type", "start_date", "end_date", "start_datetime", "end_datetime",
	"reason", "status", "reviewed_by", "reviewed_at", "review_comment", "created_at", "updated_at",
}

func TestPgLeaveRequestRepository_CreateTimeoff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgLeaveRequestRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	start, err := domain.ParseDate("2025-03-10")
	require.NoError(t, err)
	end, err := domain.ParseDate("2025-03-12")
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO leave_requests").
		WithArgs(int64(7), "timeoff", start.Time, end.Time, pgxmock.AnyArg(), pgxmock.AnyArg(), "descanso", "pending", now, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	created, err := repo.Create(context.Background(), domain.LeaveRequest{
		UserID:      7,
		RequestType: domain.RequestTypeTimeoff,
		StartDate:   &start,
		EndDate:     &end,
		Reason:      "descanso",
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	require.Equal(t, int64(11), created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgLeaveRequestRepository_GetByIDScansNullableColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgLeaveRequestRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	startAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	endAt := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	reviewer := int64(2)
	comment := "ok"

	mock.ExpectQuery("FROM leave_requests WHERE id = \\$1").
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(leaveRowColumns).
			AddRow(int64(11), int64(7), "permission", (*time.Time)(nil), (*time.Time)(nil), &startAt, &endAt,
				(*string)(nil), "approved", &reviewer, &now, &comment, now, now))

	req, err := repo.GetByID(context.Background(), 11)
	require.NoError(t, err)
	require.Equal(t, domain.RequestTypePermission, req.RequestType)
	require.Nil(t, req.StartDate)
	require.NotNil(t, req.StartDatetime)
	require.True(t, req.StartDatetime.Equal(startAt))
	require.Empty(t, req.Reason)
	require.Equal(t, domain.StatusApproved, req.Status)
	require.Equal(t, int64(2), *req.ReviewedBy)
	require.Equal(t, "ok", req.ReviewComment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgLeaveRequestRepository_ListByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgLeaveRequestRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reason := "medico"

	mock.ExpectQuery("FROM leave_requests WHERE user_id = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(leaveRowColumns).
			AddRow(int64(12), int64(7), "timeoff", &day, &day, (*time.Time)(nil), (*time.Time)(nil),
				&reason, "pending", (*int64)(nil), (*time.Time)(nil), (*string)(nil), now, now).
			AddRow(int64(11), int64(7), "timeoff", &day, &day, (*time.Time)(nil), (*time.Time)(nil),
				(*string)(nil), "rejected", (*int64)(nil), (*time.Time)(nil), (*string)(nil), now, now))

	requests, err := repo.ListByUserID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Equal(t, "2025-03-10", requests[0].StartDate.String())
	require.Equal(t, "medico", requests[0].Reason)
	require.Nil(t, requests[1].ReviewedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgLeaveRequestRepository_ListAllEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgLeaveRequestRepository(mock)
	mock.ExpectQuery("FROM leave_requests ORDER BY").
		WillReturnRows(pgxmock.NewRows(leaveRowColumns))

	requests, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, requests)
	require.Empty(t, requests)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgLeaveRequestRepository_UpdateStatusOnlyPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgLeaveRequestRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE leave_requests").
		WithArgs(int64(11), "approved", int64(2), now, "ok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE leave_requests").
		WithArgs(int64(11), "rejected", int64(2), now, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), 11, domain.StatusApproved, 2, "ok", now))
	err = repo.UpdateStatus(context.Background(), 11, domain.StatusRejected, 2, "", now)
	require.True(t, errors.Is(err, pgx.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
