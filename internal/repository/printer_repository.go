package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/jobticket-service/internal/domain"
)

// PrinterRepository is the read-only printer capability catalog.
type PrinterRepository interface {
	Printer(ctx context.Context, name string) (domain.Printer, error)
	// PrinterGroup returns the members of a group in declaration order.
	PrinterGroup(ctx context.Context, name string) (domain.PrinterGroup, error)
	// GroupOf returns the redirect group of a requested printer, "" if none.
	GroupOf(ctx context.Context, printerName string) (string, error)
}

type printerRepository struct {
	pool *pgxpool.Pool
}

// NewPrinterRepository returns a Postgres-backed implementation.
func NewPrinterRepository(pool *pgxpool.Pool) PrinterRepository {
	return &printerRepository{pool: pool}
}

// capabilities is the JSONB column layout of a printer's capability data.
type capabilities struct {
	Choices         map[string][]domain.Choice `json:"choices,omitempty"`
	MediaSources    []domain.MediaSource       `json:"media_sources,omitempty"`
	Defaults        map[string]string          `json:"defaults,omitempty"`
	CostRules       domain.CostRules           `json:"cost_rules"`
	NumberUpRules   []domain.NumberUpRule      `json:"number_up_rules,omitempty"`
	ConstraintRules []domain.CostRule          `json:"constraint_rules,omitempty"`
}

const printerColumns = `p.name, p.display_name, p.deleted, p.disabled, p.duplex, p.color, p.capabilities`

func scanPrinter(row pgx.Row) (domain.Printer, error) {
	var (
		p   domain.Printer
		raw []byte
	)
	if err := row.Scan(&p.Name, &p.DisplayName, &p.Deleted, &p.Disabled, &p.Duplex, &p.Color, &raw); err != nil {
		return domain.Printer{}, err
	}
	if len(raw) > 0 {
		var caps capabilities
		if err := json.Unmarshal(raw, &caps); err != nil {
			return domain.Printer{}, fmt.Errorf("decode capabilities of %s: %w", p.Name, err)
		}
		p.Choices = caps.Choices
		p.MediaSources = caps.MediaSources
		p.Defaults = caps.Defaults
		p.CostRules = caps.CostRules
		p.NumberUpRules = caps.NumberUpRules
		p.ConstraintRules = caps.ConstraintRules
	}
	return p, nil
}

func (r *printerRepository) Printer(ctx context.Context, name string) (domain.Printer, error) {
	query := `SELECT ` + printerColumns + ` FROM printers p WHERE p.name=$1`
	p, err := scanPrinter(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		return domain.Printer{}, err
	}
	groups, err := r.groupsOf(ctx, name)
	if err != nil {
		return domain.Printer{}, err
	}
	p.Groups = groups
	return p, nil
}

func (r *printerRepository) PrinterGroup(ctx context.Context, name string) (domain.PrinterGroup, error) {
	query := `
        SELECT ` + printerColumns + `
        FROM printer_group_members m
        JOIN printers p ON p.name = m.printer_name
        WHERE m.group_name=$1
        ORDER BY m.position, p.name`

	rows, err := r.pool.Query(ctx, query, name)
	if err != nil {
		return domain.PrinterGroup{}, err
	}
	defer rows.Close()

	group := domain.PrinterGroup{Name: name}
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return domain.PrinterGroup{}, err
		}
		p.Groups = []string{name}
		group.Members = append(group.Members, p)
	}
	return group, rows.Err()
}

func (r *printerRepository) GroupOf(ctx context.Context, printerName string) (string, error) {
	const query = `SELECT COALESCE(redirect_group, '') FROM printers WHERE name=$1`
	var group string
	if err := r.pool.QueryRow(ctx, query, printerName).Scan(&group); err != nil {
		return "", err
	}
	return group, nil
}

func (r *printerRepository) groupsOf(ctx context.Context, printerName string) ([]string, error) {
	const query = `SELECT group_name FROM printer_group_members WHERE printer_name=$1 ORDER BY group_name`
	rows, err := r.pool.Query(ctx, query, printerName)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
