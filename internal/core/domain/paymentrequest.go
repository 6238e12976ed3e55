package domain

import "luka-points/pkg/apperror"

// PaymentRequest is the ephemeral {identifier, amount} payload a payee
// encodes as a QR code so a payer can initiate a transfer without manual
// entry. It is never persisted and carries no expiry or single-use
// token; a displayed code can be scanned any number of times.
type PaymentRequest struct {
	Identifier string `json:"identifier"`
	Amount     int64  `json:"amount"`
}

/// Validate checks the payload schema: both fields present, amount a
// positive integer.
func (p PaymentRequest) Validate() error {
	if p.Identifier == "" {
		return apperror.ErrMalformedPayload("missing identifier")
	}
	if p.Amount <= 0 {
		return apperror.ErrMalformedPayload("amount must be a positive integer")
	}
	return nil
}

// Recipient returns the payee account reference named by the payload.
func (p PaymentRequest) Recipient() AccountRef {
	return NewAccountRef(p.Identifier)
}
