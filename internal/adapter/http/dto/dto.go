package dto

import (
	"time"

	"luka-points/internal/core/domain"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token   string          `json:"token"`
	Expiry  int64           `json:"expiry"` // Unix timestamp
	Account *domain.Account `json:"account"`
}

// CreateTransferRequest is the request body for a point transfer. Field
// names follow the mobile client's wire contract.
type CreateTransferRequest struct {
	SourceAccountID      string `json:"sourceAccountId"`
	DestinationAccountID string `json:"destinationAccountId" binding:"required"`
	Amount               int64  `json:"amount" binding:"required"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// ExistsResponse is the response for an account existence probe.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// SetBalanceRequest is the request body for an administrative balance
// overwrite.
type SetBalanceRequest struct {
	Ref     string `json:"ref" binding:"required"`
	Balance int64  `json:"balance" binding:"min=0"`
}

// TransferRecord mirrors domain.Transfer on the wire.
type TransferRecord struct {
	ID                   string `json:"id"`
	SourceAccountID      string `json:"sourceAccountId"`
	DestinationAccountID string `json:"destinationAccountId"`
	Amount               int64  `json:"amount"`
	Status               string `json:"status"`
	CreatedAt            string `json:"createdAt"`
}

// FromTransfer converts a domain transfer to its wire form.
func FromTransfer(t *domain.Transfer) TransferRecord {
	return TransferRecord{
		ID:                   t.ID.String(),
		SourceAccountID:      t.Source.String(),
		DestinationAccountID: t.Destination.String(),
		Amount:               t.Amount,
		Status:               string(t.Status),
		CreatedAt:            t.CreatedAt.Format(time.RFC3339Nano),
	}
}

// FromTransfers converts a history slice, preserving order.
func FromTransfers(transfers []domain.Transfer) []TransferRecord {
	out := make([]TransferRecord, 0, len(transfers))
	for i := range transfers {
		out = append(out, FromTransfer(&transfers[i]))
	}
	return out
}
