package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/backend/memory"
	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (*Resolver, *memory.Backend) {
	t.Helper()
	b := memory.New(utils.NewTokens("secret", time.Hour))
	return NewResolver(b), b
}

func TestCheckLoggedInRequiresSession(t *testing.T) {
	r, _ := newResolver(t)

	errs, err := r.Check(context.Background(), Selector{Status: LoggedIn}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgLoginRequired}, errs["email"])

	errs, err = r.Check(context.Background(), Selector{Status: LoggedIn}, &models.User{ID: "u1"})
	require.NoError(t, err)
	assert.True(t, errs.Empty())
}

func TestCheckLoggedOutRejectsExistingEmail(t *testing.T) {
	r, b := newResolver(t)
	ctx := context.Background()
	_, err := b.Register(ctx, backend.Registration{Username: "taken", Email: "taken@example.com", Password: "password123"})
	require.NoError(t, err)

	errs, err := r.Check(ctx, Selector{Status: LoggedOut, Email: "Taken@Example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgEmailTaken}, errs["email"])

	errs, err = r.Check(ctx, Selector{Status: LoggedOut, Email: "fresh@example.com"}, nil)
	require.NoError(t, err)
	assert.True(t, errs.Empty())
}

func TestResolveLoggedIn(t *testing.T) {
	r, _ := newResolver(t)

	p, errs, err := r.Resolve(context.Background(), Selector{Status: LoggedIn}, &models.User{ID: "u1", Email: "me@example.com"})
	require.NoError(t, err)
	assert.True(t, errs.Empty())
	assert.Equal(t, "u1", p.UserID)
	assert.False(t, p.Created)
	assert.Empty(t, p.Token)

	_, _, err = r.Resolve(context.Background(), Selector{Status: LoggedIn}, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestResolveGuestCreatesAccount(t *testing.T) {
	r, b := newResolver(t)
	ctx := context.Background()

	p, errs, err := r.Resolve(ctx, Selector{Status: LoggedOut, Email: "guest@example.com"}, nil)
	require.NoError(t, err)
	assert.True(t, errs.Empty())
	assert.True(t, p.Created)
	assert.NotEmpty(t, p.Token)
	assert.Equal(t, "guest@example.com", p.Username)

	me, err := b.Me(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, me.ID)
}

func TestResolveGuestLosingRaceIsFieldError(t *testing.T) {
	r, b := newResolver(t)
	ctx := context.Background()

	errs, err := r.Check(ctx, Selector{Status: LoggedOut, Email: "race@example.com"}, nil)
	require.NoError(t, err)
	require.True(t, errs.Empty())

	// une autre requête crée le compte entre la vérification et la résolution
	_, err = b.Register(ctx, backend.Registration{Username: "winner", Email: "race@example.com", Password: "password123"})
	require.NoError(t, err)

	p, errs, err := r.Resolve(ctx, Selector{Status: LoggedOut, Email: "race@example.com"}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, []string{MsgEmailTaken}, errs["email"])
}

func TestResolvePasswordGeneratorFailure(t *testing.T) {
	r, _ := newResolver(t)
	r.newPassword = func() (string, error) { return "", errors.New("entropy") }

	_, _, err := r.Resolve(context.Background(), Selector{Status: LoggedOut, Email: "x@example.com"}, nil)
	assert.Error(t, err)
}
