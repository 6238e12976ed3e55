package service

import (
	"luka-points/internal/core/domain"
	"luka-points/pkg/apperror"
)

// ValidateTransfer enforces the transfer preconditions. It is pure: it
// inspects only its inputs and performs no side effects. sourceBalance
// and destinationExists must be read fresh immediately before the call.
//
// Checks run in order and short-circuit on the first failure:
// amount, self-transfer, recipient existence, funds.
func ValidateTransfer(source, destination domain.AccountRef, amount, sourceBalance int64, destinationExists bool) (*domain.TransferIntent, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if source == destination {
		return nil, apperror.ErrSelfTransfer()
	}
	if !destinationExists {
		return nil, apperror.ErrRecipientNotFound()
	}
	if amount > sourceBalance {
		return nil, apperror.ErrInsufficientFunds()
	}

	return &domain.TransferIntent{
		Source:        source,
		Destination:   destination,
		Amount:        amount,
		SourceBalance: sourceBalance,
	}, nil
}
