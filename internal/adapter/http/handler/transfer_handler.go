package handler

import (
	"time"

	"luka-points/internal/adapter/http/dto"
	"luka-points/internal/adapter/http/middleware"
	"luka-points/internal/core/domain"
	"luka-points/internal/core/ports"
	"luka-points/pkg/apperror"
	"luka-points/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles the transfer endpoints.
type TransferHandler struct {
	transferSvc ports.TransferService
	transferLog ports.TransferLog
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService, transferLog ports.TransferLog) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc, transferLog: transferLog}
}

// Create handles POST /api/v1/transfers. The source defaults to the
// authenticated caller; naming a different source requires the admin
// role.
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	callerID, ok := middleware.AccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	callerRef := domain.RefFromID(callerID)

	source := callerRef
	if req.SourceAccountID != "" {
		source = domain.NewAccountRef(req.SourceAccountID)
		if source != callerRef && !isAdmin(c) {
			response.Error(c, apperror.ErrForbidden())
			return
		}
	}

	transfer, err := h.transferSvc.Transfer(
		c.Request.Context(),
		source,
		domain.NewAccountRef(req.DestinationAccountID),
		req.Amount,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromTransfer(transfer))
}

func isAdmin(c *gin.Context) bool {
	role, exists := c.Get(middleware.CtxRole)
	return exists && role == domain.RoleAdmin
}

// History handles GET /api/v1/transfers/account/:ref, newest first.
func (h *TransferHandler) History(c *gin.Context) {
	ref := domain.NewAccountRef(c.Param("ref"))
	if ref.IsZero() {
		response.Error(c, apperror.Validation("account reference is required"))
		return
	}

	transfers, err := h.transferSvc.History(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromTransfers(transfers))
}

// Get handles GET /api/v1/transfers/:id.
func (h *TransferHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transfer id"))
		return
	}

	transfer, err := h.transferSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromTransfer(transfer))
}

// AppendRecord handles POST /api/v1/transfers/records. Satellite
// instances running against this server as their balance backend use it
// to persist records they executed locally.
func (h *TransferHandler) AppendRecord(c *gin.Context) {
	var req dto.TransferRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid transfer id"))
		return
	}
	createdAt, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	transfer := domain.Transfer{
		ID:          id,
		Source:      domain.NewAccountRef(req.SourceAccountID),
		Destination: domain.NewAccountRef(req.DestinationAccountID),
		Amount:      req.Amount,
		Status:      domain.TransferStatus(req.Status),
		CreatedAt:   createdAt,
	}
	if transfer.Status == "" {
		transfer.Status = domain.TransferStatusCompleted
	}

	if err := h.transferLog.Append(c.Request.Context(), &transfer); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromTransfer(&transfer))
}
