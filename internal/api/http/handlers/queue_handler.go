package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobticket-service/internal/api/dto"
	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/observability"
	"github.com/spec-kit/jobticket-service/internal/service"
	apperrors "github.com/spec-kit/jobticket-service/pkg/util"
)

// QueueStatsSource yields the queue-depth snapshot.
type QueueStatsSource interface {
	Stats() domain.QueueStats
}

// JobStateSink consumes print backend status reports.
type JobStateSink interface {
	HandleJobState(ctx context.Context, printOutID string, state service.JobState) (*domain.Ticket, error)
}

// QueueHandler serves queue statistics, the backend status feed and the
// request metrics.
type QueueHandler struct {
	stats   QueueStatsSource
	states  JobStateSink
	metrics *observability.Metrics
}

// NewQueueHandler constructs handler.
func NewQueueHandler(stats QueueStatsSource, states JobStateSink, metrics *observability.Metrics) *QueueHandler {
	return &QueueHandler{stats: stats, states: states, metrics: metrics}
}

// Stats GET /queue/stats.
func (h *QueueHandler) Stats(c *fiber.Ctx) error {
	s := h.stats.Stats()
	return c.JSON(fiber.Map{"data": dto.QueueStatsResponse{
		CopyTickets:  s.CopyTickets,
		PrintTickets: s.PrintTickets,
		Total:        s.Total(),
	}})
}

// JobState POST /backend/jobs/:printOutId/state.
func (h *QueueHandler) JobState(c *fiber.Ctx) error {
	var req dto.JobStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.states.HandleJobState(c.UserContext(), c.Params("printOutId"), service.JobState(req.State))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Metrics GET /admin/metrics.
func (h *QueueHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
