package service

import (
	"net/http"

	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// Precondition failures are never retried and never change the store.
var (
	ErrAlreadyDispatched   = apperrors.NewPrecondition("ticket already dispatched", nil)
	ErrNotPrintable        = apperrors.NewPrecondition("copy tickets are not dispatched to a printer", nil)
	ErrMediaSourceRequired = apperrors.NewPrecondition("a media source of the target printer is required", nil)
	ErrMediaRequired       = apperrors.NewPrecondition("ticket has no media option", nil)
	ErrCostMissing         = apperrors.NewPrecondition("ticket cost not computed", nil)
	ErrCopiesRequired      = apperrors.NewPrecondition("ticket has no copies; amend it first", nil)
	ErrNotReopenable       = apperrors.NewPrecondition("ticket cannot be reopened", nil)
	ErrNotRetryable        = apperrors.NewPrecondition("ticket was not canceled by the device", nil)
	ErrNoCompatiblePrinter = apperrors.NewPrecondition("printer cannot execute the ticket", nil)
)

var (
	ErrInsufficientCredit = apperrors.NewDomainError("INSUFFICIENT_CREDIT", "insufficient credit", http.StatusPaymentRequired, nil)
	ErrDispatchFailed     = apperrors.NewDomainError("DISPATCH_FAILED", "print backend did not accept the job", http.StatusBadGateway, nil)
	ErrInvalidCredentials = apperrors.NewDomainError("UNAUTHORIZED", "invalid credentials", http.StatusUnauthorized, nil)
)
