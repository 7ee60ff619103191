package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/api/http/handlers"
	"github.com/spec-kit/jobticket-service/internal/auth"
	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/events"
	"github.com/spec-kit/jobticket-service/internal/observability"
	"github.com/spec-kit/jobticket-service/internal/redirect"
	"github.com/spec-kit/jobticket-service/internal/service"
	"github.com/spec-kit/jobticket-service/internal/ticketstore"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

const backendToken = "backend-secret"

type stubOperators struct {
	byID map[string]*domain.Operator
}

func (s *stubOperators) Create(context.Context, *domain.Operator) error { return nil }
func (s *stubOperators) Update(context.Context, *domain.Operator) error { return nil }

func (s *stubOperators) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	op, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return op, nil
}

func (s *stubOperators) GetByEmail(context.Context, string) (*domain.Operator, error) {
	return nil, pgx.ErrNoRows
}

type stubTickets struct {
	tickets   map[string]*domain.Ticket
	admitted  service.AdmitInput
	lastActor events.Actor
	states    []service.JobState
}

func (s *stubTickets) Admit(_ context.Context, in service.AdmitInput, actor events.Actor) (*domain.Ticket, error) {
	s.admitted, s.lastActor = in, actor
	cost := decimal.RequireFromString("1.20")
	return &domain.Ticket{ID: "t-new", Number: "AAAA-BBBB", Kind: in.Kind, Status: domain.TicketStatusPending, Cost: &cost}, nil
}

func (s *stubTickets) Amend(_ context.Context, id string, _ service.AmendInput) (*domain.Ticket, error) {
	return s.Get(id)
}

func (s *stubTickets) Print(_ context.Context, id string, _ service.PrintInput, actor events.Actor) (*domain.Ticket, error) {
	s.lastActor = actor
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if t.PrintOutID != nil {
		return nil, fmt.Errorf("print %s: %w", t.Number, service.ErrAlreadyDispatched)
	}
	return t, nil
}

func (s *stubTickets) Retry(_ context.Context, id string, _ service.RetryInput, _ events.Actor) (*domain.Ticket, error) {
	return s.Get(id)
}

func (s *stubTickets) Settle(_ context.Context, id string, _ events.Actor) (*domain.Ticket, error) {
	return s.Get(id)
}

func (s *stubTickets) Cancel(_ context.Context, id string, _ events.Actor) (*domain.Ticket, error) {
	return s.Get(id)
}

func (s *stubTickets) Reopen(_ context.Context, id string, _ events.Actor) (*domain.Ticket, error) {
	return s.Get(id)
}

func (s *stubTickets) Get(id string) (*domain.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ticketstore.ErrTicketNotFound, id)
	}
	return t, nil
}

func (s *stubTickets) GetByNumber(number string) (*domain.Ticket, error) {
	for _, t := range s.tickets {
		if t.Number == number {
			return t, nil
		}
	}
	return nil, ticketstore.ErrTicketNotFound
}

func (s *stubTickets) List(ticketstore.Filter) ([]*domain.Ticket, error) {
	out := make([]*domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	return out, nil
}

func (s *stubTickets) Redirects(_ context.Context, id string) ([]redirect.Redirect, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return []redirect.Redirect{{
		Printer:      domain.Printer{Name: "copier-1", Duplex: true},
		Preferred:    true,
		MediaSources: []domain.MediaSource{{Keyword: "tray-1", Media: "iso_a4_210x297mm"}},
	}}, nil
}

func (s *stubTickets) Stats() domain.QueueStats {
	return domain.QueueStats{CopyTickets: 1, PrintTickets: 2}
}

func (s *stubTickets) HandleJobState(_ context.Context, printOutID string, state service.JobState) (*domain.Ticket, error) {
	if !state.Valid() {
		return nil, apperrors.NewValidationError("unknown job state", nil)
	}
	s.states = append(s.states, state)
	for _, t := range s.tickets {
		if t.PrintOutID != nil && *t.PrintOutID == printOutID {
			return t, nil
		}
	}
	return nil, ticketstore.ErrTicketNotFound
}

type testServer struct {
	app     *fiber.App
	tickets *stubTickets
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	printOut := "job-1"
	tickets := &stubTickets{tickets: map[string]*domain.Ticket{
		"t-1": {ID: "t-1", Number: "1111-2222", Kind: domain.TicketKindPrint, Status: domain.TicketStatusPending},
		"t-2": {ID: "t-2", Number: "3333-4444", Kind: domain.TicketKindPrint, Status: domain.TicketStatusDispatched, PrintOutID: &printOut},
	}}
	operators := &stubOperators{byID: map[string]*domain.Operator{
		"op-1":    {ID: "op-1", Role: domain.OperatorRoleOperator, Active: true},
		"admin-1": {ID: "admin-1", Role: domain.OperatorRoleAdmin, Active: true},
		"gone":    {ID: "gone", Role: domain.OperatorRoleOperator, Active: false},
	}}
	tokens := auth.NewTokenManager("test-secret", 5)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("jobticket", "test", nil),
		Auth:           handlers.NewAuthHandler(nil),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Queue:          handlers.NewQueueHandler(tickets, tickets, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, operators, backendToken),
	})
	return &testServer{app: app, tickets: tickets, tokens: tokens, metrics: metrics}
}

func (s *testServer) token(t *testing.T, operatorID string, role domain.OperatorRole) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(operatorID, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, "GET", "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = s.do(t, "GET", "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestTicketRoutesRequireOperator(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "GET", "/tickets", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, "GET", "/tickets", s.token(t, "gone", domain.OperatorRoleOperator), "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = s.do(t, "GET", "/tickets", backendToken, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, "GET", "/tickets", s.token(t, "op-1", domain.OperatorRoleOperator), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 2)
}

func TestAdmitTicket(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "op-1", domain.OperatorRoleOperator)

	status, body := s.do(t, "POST", "/tickets", token, `{
		"kind": "print",
		"owner_id": "owner@example.org",
		"printer": "copier-1",
		"copies": 3,
		"pages": 4,
		"options": {"media": "iso_a4_210x297mm", "sides": "two-sided-long-edge"},
		"payload": "JVBERi0xLjc=",
		"accounts": {"weights": [{"account_id": "acc-a", "weight": 1}]}
	}`)
	require.Equal(t, fiber.StatusCreated, status, body)

	data := body["data"].(map[string]any)
	assert.Equal(t, "AAAA-BBBB", data["number"])
	assert.Equal(t, "1.2", data["cost"])

	in := s.tickets.admitted
	assert.Equal(t, domain.TicketKindPrint, in.Kind)
	assert.Equal(t, []byte("%PDF-1.7"), in.Payload)
	require.NotNil(t, in.Accounts)
	assert.Equal(t, "acc-a", in.Accounts.Weights[0].AccountID)
	require.NotNil(t, s.tickets.lastActor.OperatorID)
	assert.Equal(t, "op-1", *s.tickets.lastActor.OperatorID)
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "op-1", domain.OperatorRoleOperator)

	status, body := s.do(t, "GET", "/tickets/missing", token, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, "POST", "/tickets/t-2/print", token, "")
	assert.Equal(t, fiber.StatusPreconditionFailed, status)
	assert.Equal(t, "PRECONDITION_FAILED", errorCode(body))

	status, body = s.do(t, "POST", "/tickets", token, "{not json")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, "GET", "/nowhere", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	snap := s.metrics.Snapshot()
	assert.NotEmpty(t, snap.Errors)
}

func TestPrintersAndQueueStats(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "op-1", domain.OperatorRoleOperator)

	status, body := s.do(t, "GET", "/tickets/t-1/printers", token, "")
	require.Equal(t, fiber.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, true, items[0].(map[string]any)["preferred"])

	status, body = s.do(t, "GET", "/queue/stats", token, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(3), body["data"].(map[string]any)["total"])
}

func TestBackendJobState(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/backend/jobs/job-1/state", s.token(t, "op-1", domain.OperatorRoleOperator), `{"state":"COMPLETED"}`)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, "POST", "/backend/jobs/job-1/state", backendToken, `{"state":"COMPLETED"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, []service.JobState{service.JobStateCompleted}, s.tickets.states)

	status, _ = s.do(t, "POST", "/backend/jobs/job-1/state", backendToken, `{"state":"MELTED"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "GET", "/admin/metrics", s.token(t, "op-1", domain.OperatorRoleOperator), "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, "GET", "/admin/metrics", s.token(t, "admin-1", domain.OperatorRoleAdmin), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body["data"], "requests")
}
