package ticketstore

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

func TestSentinelsMapToHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: t-1", ErrTicketNotFound), "NOT_FOUND", http.StatusNotFound},
		{fmt.Errorf("%w: t-1", ErrDuplicateTicket), "CONFLICT", http.StatusConflict},
		{fmt.Errorf("admit ticket: %w", ErrDuplicateNumber), "CONFLICT", http.StatusConflict},
		{ErrStoreClosed, "UNAVAILABLE", http.StatusServiceUnavailable},
		{fmt.Errorf("%w: t-1", ErrPayloadCorrupt), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		de := apperrors.ToDomainError(tc.err)
		assert.Equal(t, tc.code, de.Code, tc.err.Error())
		assert.Equal(t, tc.status, de.HTTPStatus, tc.err.Error())
	}

	assert.ErrorIs(t, fmt.Errorf("%w: n", ErrDuplicateNumber), ErrDuplicateNumber)
	assert.NotErrorIs(t, fmt.Errorf("%w: n", ErrDuplicateNumber), ErrDuplicateTicket)
}
