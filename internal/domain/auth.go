package domain

import "time"

// OperatorRole enumerates who may release, settle or cancel tickets.
type OperatorRole string

const (
	OperatorRoleOperator OperatorRole = "OPERATOR"
	OperatorRoleAdmin    OperatorRole = "ADMIN"
	OperatorRoleBackend  OperatorRole = "BACKEND"
)

// Operator is a staff member working the ticket queue.
type Operator struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         OperatorRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
