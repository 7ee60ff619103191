// Package redirect picks the physical devices able to execute a ticket
// queued on a logical printer.
package redirect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// Catalog supplies printer capabilities and group membership.
type Catalog interface {
	PrinterGroup(ctx context.Context, name string) (domain.PrinterGroup, error)
}

// OptionFilter is an extra admissibility check decided by the caller. It
// returns a non-empty reason when the device must be skipped.
type OptionFilter func(printer *domain.Printer, ticket *domain.Ticket) string

// Redirect is a device that can execute the ticket, with the choices the
// operator picks from.
type Redirect struct {
	Printer   domain.Printer
	Preferred bool
	// MediaSources are the trays loaded with the requested medium.
	MediaSources []domain.MediaSource
	// JobSheetsSource feeds banner sheets; nil unless job sheets are requested.
	JobSheetsSource *domain.MediaSource
	OutputBin       string
	JogOffset       string
}

// Rejection explains why a group member was skipped.
type Rejection struct {
	Printer string
	Reason  string
}

// Resolver filters and ranks group members for a ticket.
type Resolver struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewResolver builds a resolver over catalog.
func NewResolver(catalog Catalog, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{catalog: catalog, logger: logger}
}

// GroupName returns the logical group a ticket is redirected within.
func GroupName(t *domain.Ticket) string {
	if t.PrinterGroup != "" {
		return t.PrinterGroup
	}
	return t.PrinterName
}

// Resolve returns the compatible devices of the ticket's group in
// declaration order. An empty list is a valid outcome; only a failing
// catalog lookup is an error.
func (r *Resolver) Resolve(ctx context.Context, t *domain.Ticket, filter OptionFilter) ([]Redirect, error) {
	group, err := r.catalog.PrinterGroup(ctx, GroupName(t))
	if err != nil {
		return nil, fmt.Errorf("load printer group %s: %w", GroupName(t), err)
	}
	redirects, rejected := Candidates(group, t, filter)
	for _, rej := range rejected {
		r.logger.Debug("redirect printer rejected",
			zap.String("ticket_id", t.ID),
			zap.String("printer", rej.Printer),
			zap.String("reason", rej.Reason))
	}
	return redirects, nil
}

// Candidates applies the compatibility checks to every member of group.
func Candidates(group domain.PrinterGroup, t *domain.Ticket, filter OptionFilter) ([]Redirect, []Rejection) {
	redirects := []Redirect{}
	var rejected []Rejection

	for i := range group.Members {
		p := &group.Members[i]
		if p.Deleted || p.Disabled {
			continue
		}
		redirect, reason := evaluate(p, t, filter)
		if reason != "" {
			rejected = append(rejected, Rejection{Printer: p.Name, Reason: reason})
			continue
		}
		redirects = append(redirects, redirect)
	}

	wantColor := t.WantsColor()
	for i := range redirects {
		if redirects[i].Printer.Color == wantColor {
			redirects[i].Preferred = true
			break
		}
	}
	return redirects, rejected
}

func evaluate(p *domain.Printer, t *domain.Ticket, filter OptionFilter) (Redirect, string) {
	if t.WantsDuplex() && !p.Duplex {
		return Redirect{}, "duplex not supported"
	}
	if t.WantsColor() && !p.Color {
		return Redirect{}, "color not supported"
	}
	finishings := t.Finishings()
	for _, keyword := range domain.FinishingKeywords {
		value, requested := finishings[keyword]
		if requested && !p.Supports(keyword, value) {
			return Redirect{}, fmt.Sprintf("%s %s not supported", keyword, value)
		}
	}
	if mediaType := t.Option(domain.OptMediaType); mediaType != "" {
		choice, ok := p.Choice(domain.OptMediaType, mediaType)
		if !ok || choice.Label == "" {
			return Redirect{}, fmt.Sprintf("media type %s not available", mediaType)
		}
	}
	if filter != nil {
		if reason := filter(p, t); reason != "" {
			return Redirect{}, reason
		}
	}
	sources := mediaSourcesFor(p, t.Option(domain.OptMedia))
	if len(sources) == 0 {
		return Redirect{}, "no media source for requested media"
	}
	if t.Copies > 1 && t.Pages > 1 {
		if collate := t.Option(domain.OptSheetCollate); collate != "" && !p.Supports(domain.OptSheetCollate, collate) {
			return Redirect{}, fmt.Sprintf("collate %s not supported", collate)
		}
	}

	redirect := Redirect{
		Printer:      *p,
		MediaSources: sources,
		OutputBin:    p.Defaults[domain.OptOutputBin],
		JogOffset:    p.Defaults[domain.OptJogOffset],
	}
	if t.WantsJobSheets() {
		redirect.JobSheetsSource = jobSheetsSource(p, sources)
	}
	return redirect, ""
}

// mediaSourcesFor returns the sources loaded with media, or every source
// when no medium was requested.
func mediaSourcesFor(p *domain.Printer, media string) []domain.MediaSource {
	var sources []domain.MediaSource
	for _, src := range p.MediaSources {
		if src.Keyword == "" {
			continue
		}
		if media == "" || src.Media == media {
			sources = append(sources, src)
		}
	}
	return sources
}

func jobSheetsSource(p *domain.Printer, scoped []domain.MediaSource) *domain.MediaSource {
	if keyword := p.Defaults[domain.OptJobSheetsSource]; keyword != "" {
		for _, src := range p.MediaSources {
			if src.Keyword == keyword {
				s := src
				return &s
			}
		}
	}
	s := scoped[0]
	return &s
}

// HasMediaSource reports whether keyword is one of the redirect's sources.
func (r Redirect) HasMediaSource(keyword string) bool {
	for _, src := range r.MediaSources {
		if src.Keyword == keyword {
			return true
		}
	}
	return false
}
