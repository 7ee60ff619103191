package service

import (
	"context"

	"github.com/spec-kit/jobticket-service/internal/domain"
	"github.com/spec-kit/jobticket-service/internal/events"
)

type actorKey struct{}

func withActor(ctx context.Context, actor events.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) events.Actor {
	actor, _ := ctx.Value(actorKey{}).(events.Actor)
	return actor
}

// TicketCompleted is called by the store when a ticket leaves it printed
// or settled.
func (s *JobTicketService) TicketCompleted(ctx context.Context, t *domain.Ticket) {
	outcome := domain.OutcomeSettled
	if t.PrintOutID != nil {
		outcome = domain.OutcomeCompleted
	}
	s.publishEvent(ctx, events.EventTicketCompleted, t, actorFrom(ctx), events.TicketClosedPayload{
		Outcome: outcome,
		JobName: t.JobName,
	})
}

// TicketCanceled is called by the store when a ticket is dropped.
func (s *JobTicketService) TicketCanceled(ctx context.Context, t *domain.Ticket) {
	s.publishEvent(ctx, events.EventTicketCanceled, t, actorFrom(ctx), events.TicketClosedPayload{
		Outcome: domain.OutcomeCanceled,
		JobName: t.JobName,
	})
}
