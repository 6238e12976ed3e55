package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Transfer Business Logic (TRF) ----

func ErrInvalidAmount() *AppError {
	return New("TRF_001", "Amount must be a positive integer", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("TRF_002", "Source and destination accounts must differ", http.StatusBadRequest)
}

func ErrRecipientNotFound() *AppError {
	return New("TRF_003", "Recipient account not found", http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New("TRF_004", "Insufficient points balance", http.StatusPaymentRequired)
}

// ErrTransferFailed wraps an execution-layer failure. The cause is logged
// for diagnostics, never shown to the user.
func ErrTransferFailed(err error) *AppError {
	return Wrap("TRF_005", "Transfer could not be completed", http.StatusInternalServerError, err)
}

func ErrTransferNotFound() *AppError {
	return New("TRF_006", "Transfer not found", http.StatusNotFound)
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound() *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound)
}

// ---- QR Payment Requests (QR) ----

func ErrMalformedPayload(detail string) *AppError {
	return New("QR_001", fmt.Sprintf("Malformed payment request payload: %s", detail), http.StatusBadRequest)
}

// ---- Transport (NET) ----

func ErrNetwork(err error) *AppError {
	return Wrap("NET_001", "Balance backend unreachable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Insufficient role for this operation", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
