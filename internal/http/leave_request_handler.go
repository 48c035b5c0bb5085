package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timeoff-manager/internal/domain"
	"timeoff-manager/internal/service"
)

// LeaveRequestHandler expone las solicitudes de ausencia.
type LeaveRequestHandler struct {
	logger    *zap.Logger
	leaveServ *service.LeaveRequestService
}

func NewLeaveRequestHandler(logger *zap.Logger, leaveServ *service.LeaveRequestService) *LeaveRequestHandler {
	return &LeaveRequestHandler{
		logger:    logger,
		leaveServ: leaveServ,
	}
}

type leaveRequestResponse struct {
	domain.LeaveRequest
	Message string `json:"message,omitempty"`
}

// List maneja GET /leave_requests.
func (h *LeaveRequestHandler) List(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Authentication required")
		return
	}

	requests, err := h.leaveServ.List(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("list leave requests failed", zap.Error(err), zap.Int64("user_id", identity.ID))
		abortWithError(c, http.StatusInternalServerError, errCodeInternal, "could not list leave requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"leave_requests": requests, "count": len(requests)})
}

// Create maneja POST /leave_requests.
func (h *LeaveRequestHandler) Create(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Authentication required")
		return
	}

	var req struct {
		RequestType   string `json:"request_type" binding:"required"`
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
		StartDatetime string `json:"start_datetime"`
		EndDatetime   string `json:"end_datetime"`
		Reason        string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid leave request body", zap.Error(err))
		abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, "request_type is required")
		return
	}

	created, err := h.leaveServ.Create(c.Request.Context(), identity, service.CreateLeaveRequestInput{
		RequestType:   req.RequestType,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		StartDatetime: req.StartDatetime,
		EndDatetime:   req.EndDatetime,
		Reason:        req.Reason,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidLeaveRequest) {
			abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, err.Error())
			return
		}
		h.logger.Error("create leave request failed", zap.Error(err), zap.Int64("user_id", identity.ID))
		abortWithError(c, http.StatusInternalServerError, errCodeInternal, "could not create leave request")
		return
	}

	message := "Timeoff request created successfully"
	if created.RequestType == domain.RequestTypePermission {
		message = "Permission request created successfully"
	}
	c.JSON(http.StatusOK, leaveRequestResponse{LeaveRequest: created, Message: message})
}

// UpdateStatus maneja PUT /leave_requests/:id/status.
func (h *LeaveRequestHandler) UpdateStatus(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, "id must be a positive integer")
		return
	}

	// El cuerpo se valida en el servicio, despues del chequeo de rol.
	var req struct {
		Status        string `json:"status"`
		ReviewComment string `json:"review_comment"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid status update body", zap.Error(err))
			req.Status = ""
		}
	}

	updated, err := h.leaveServ.UpdateStatus(c.Request.Context(), identity, id, req.Status, req.ReviewComment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			abortWithError(c, http.StatusForbidden, errCodeForbidden, "Only managers can update leave request status")
		case errors.Is(err, service.ErrInvalidStatus):
			abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, "Status must be 'approved' or 'rejected'")
		case errors.Is(err, service.ErrLeaveRequestNotFound):
			abortWithError(c, http.StatusNotFound, errCodeNotFound, "Leave request not found")
		case errors.Is(err, service.ErrAlreadyProcessed):
			abortWithError(c, http.StatusBadRequest, errCodeBadRequest, "Leave request has already been processed")
		default:
			h.logger.Error("update leave request failed", zap.Error(err), zap.Int64("request_id", id))
			abortWithError(c, http.StatusInternalServerError, errCodeInternal, "could not update leave request")
		}
		return
	}

	c.JSON(http.StatusOK, leaveRequestResponse{
		LeaveRequest: updated,
		Message:      "Leave request " + string(updated.Status) + " successfully",
	})
}
