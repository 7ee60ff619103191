package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/jobticket-service/internal/auth"
	"github.com/spec-kit/jobticket-service/internal/config"
	"github.com/spec-kit/jobticket-service/internal/domain"
)

type memOperators struct {
	byEmail map[string]*domain.Operator
	updates int
}

func (m *memOperators) Create(_ context.Context, operator *domain.Operator) error {
	operator.ID = "op-" + operator.Email
	m.byEmail[operator.Email] = operator
	return nil
}

func (m *memOperators) Update(_ context.Context, operator *domain.Operator) error {
	m.byEmail[operator.Email] = operator
	m.updates++
	return nil
}

func (m *memOperators) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	for _, op := range m.byEmail {
		if op.ID == id {
			return op, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memOperators) GetByEmail(_ context.Context, email string) (*domain.Operator, error) {
	op, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return op, nil
}

func newAuthService(t *testing.T) (*AuthService, *memOperators, *auth.TokenManager) {
	t.Helper()
	repo := &memOperators{byEmail: map[string]*domain.Operator{}}
	tokens := auth.NewTokenManager("test-secret", 15)
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, repo, tokens, zap.NewNop())
	return svc, repo, tokens
}

func TestLogin(t *testing.T) {
	svc, _, tokens := newAuthService(t)
	ctx := context.Background()

	created, err := svc.CreateOperator(ctx, OperatorInput{
		Name:     "Desk",
		Email:    " Desk@Example.org ",
		Password: "correct horse",
		Role:     domain.OperatorRoleOperator,
	})
	require.NoError(t, err)
	assert.Equal(t, "desk@example.org", created.Email)

	op, token, exp, err := svc.Login(ctx, "desk@example.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, op.ID)
	assert.False(t, exp.IsZero())

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.OperatorID())
	assert.Equal(t, domain.OperatorRoleOperator, claims.Role)
}

func TestLoginFailures(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateOperator(ctx, OperatorInput{Email: "a@example.org", Password: "password1", Role: domain.OperatorRoleAdmin})
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "a@example.org", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.Login(ctx, "nobody@example.org", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	repo.byEmail["a@example.org"].Active = false
	_, _, _, err = svc.Login(ctx, "a@example.org", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRehashesOutdatedCost(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost+1)
	require.NoError(t, err)
	repo.byEmail["b@example.org"] = &domain.Operator{
		ID: "op-b", Email: "b@example.org", PasswordHash: string(hash),
		Role: domain.OperatorRoleOperator, Active: true,
	}

	_, _, _, err = svc.Login(ctx, "b@example.org", "password1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.updates)
	assert.False(t, auth.NeedsRehash(repo.byEmail["b@example.org"].PasswordHash, bcrypt.MinCost))
}

func TestCreateOperatorRejectsDuplicatesAndBadInput(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	in := OperatorInput{Email: "c@example.org", Password: "password1", Role: domain.OperatorRoleOperator}
	_, err := svc.CreateOperator(ctx, in)
	require.NoError(t, err)

	_, err = svc.CreateOperator(ctx, in)
	assert.Error(t, err)

	_, err = svc.CreateOperator(ctx, OperatorInput{Email: "d@example.org", Password: "short", Role: domain.OperatorRoleOperator})
	assert.Error(t, err)

	_, err = svc.CreateOperator(ctx, OperatorInput{Email: "d@example.org", Password: "password1", Role: "JANITOR"})
	assert.Error(t, err)
}
