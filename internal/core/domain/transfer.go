package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle state of a transfer. Completed is the
// only status a successful execution produces; failed executions never
// append a record.
type TransferStatus string

const (
	TransferStatusCompleted TransferStatus = "completed"
)

// Transfer is an immutable record of a single point movement between two
// accounts.
type Transfer struct {
	ID          uuid.UUID      `json:"id"`
	Source      AccountRef     `json:"sourceAccountId"`
	Destination AccountRef     `json:"destinationAccountId"`
	Amount      int64          `json:"amount"`
	Status      TransferStatus `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Involves reports whether the given account is a party to the transfer.
func (t *Transfer) Involves(ref AccountRef) bool {
	return t.Source == ref || t.Destination == ref
}

// TransferIntent is a validated transfer waiting for execution. It is
// produced only by the validator; SourceBalance is the balance observed
// immediately before validation.
type TransferIntent struct {
	Source        AccountRef
	Destination   AccountRef
	Amount        int64
	SourceBalance int64
}
