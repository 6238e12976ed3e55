package handler

import (
	"luka-points/internal/adapter/http/dto"
	"luka-points/internal/adapter/http/middleware"
	"luka-points/internal/core/domain"
	"luka-points/internal/core/ports"
	"luka-points/pkg/apperror"
	"luka-points/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler exposes balance queries over the active balance store.
type AccountHandler struct {
	store ports.BalanceStore
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(store ports.BalanceStore) *AccountHandler {
	return &AccountHandler{store: store}
}

// GetBalance handles GET /api/v1/accounts/balance. Without a ref query
// parameter it returns the caller's own balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	ref := domain.NewAccountRef(c.Query("ref"))
	if ref.IsZero() {
		id, ok := middleware.AccountID(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			return
		}
		ref = domain.RefFromID(id)
	}

	balance, err := h.store.GetBalance(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// Exists handles GET /api/v1/accounts/exists/:ref.
func (h *AccountHandler) Exists(c *gin.Context) {
	ref := domain.NewAccountRef(c.Param("ref"))
	if ref.IsZero() {
		response.Error(c, apperror.Validation("account reference is required"))
		return
	}

	exists, err := h.store.AccountExists(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ExistsResponse{Exists: exists})
}

// SetBalance handles PUT /api/v1/accounts/balance. The route is
// admin-only; it overwrites the stored balance outside the transfer
// flow.
func (h *AccountHandler) SetBalance(c *gin.Context) {
	var req dto.SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	ref := domain.NewAccountRef(req.Ref)
	if err := h.store.SetBalance(c.Request.Context(), ref, req.Balance); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{Balance: req.Balance})
}
