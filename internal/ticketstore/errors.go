package ticketstore

import (
	"errors"
	"net/http"

	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// Lookup and admission failures carry their HTTP mapping; callers still
// match them with errors.Is.
var (
	ErrTicketNotFound  = apperrors.NewDomainError("NOT_FOUND", "ticket not found", http.StatusNotFound, nil)
	ErrDuplicateTicket = apperrors.NewDomainError("CONFLICT", "ticket already cached", http.StatusConflict, nil)
	ErrDuplicateNumber = apperrors.NewDomainError("CONFLICT", "ticket number already in use", http.StatusConflict, nil)
	ErrStoreClosed     = apperrors.NewDomainError("UNAVAILABLE", "ticket store is not started", http.StatusServiceUnavailable, nil)
)

var (
	ErrPayloadRequired = errors.New("print ticket requires a payload")
	ErrPayloadCorrupt  = errors.New("ticket payload does not match its digest")
	ErrSchemaMismatch  = errors.New("ticket descriptor schema mismatch")
)
