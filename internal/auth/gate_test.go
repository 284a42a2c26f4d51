package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/migrate"
	"github.com/bendatsko/dacroq/internal/storage"
)

type fakeVerifier struct {
	identity Identity
	err      error
}

func (f fakeVerifier) Verify(ctx context.Context, credential string) (Identity, error) {
	return f.identity, f.err
}

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	db, err := storage.Open(":memory:", zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, (migrate.Runner{Dir: "../../migrations"}).Up(context.Background(), sqlDB))

	return storage.New(db)
}

func TestAuthenticateRejectsEmptyCredential(t *testing.T) {
	g := NewGate(fakeVerifier{}, newTestRepo(t), zap.NewNop(), false, false)
	_, err := g.Authenticate(context.Background(), "")
	require.True(t, apierr.Is(err, apierr.InvalidInput))
}

func TestAuthenticateUpsertsVerifiedIdentity(t *testing.T) {
	verifier := fakeVerifier{identity: Identity{Subject: "sub-1", Email: "a@example.com", Name: "A"}}
	g := NewGate(verifier, newTestRepo(t), zap.NewNop(), false, false)

	user, err := g.Authenticate(context.Background(), "any-credential")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", user.Email)
	require.NotNil(t, user.LastLogin)
}

func TestAuthenticateSecondCallUpdatesLastLoginNotCreatesDuplicate(t *testing.T) {
	verifier := fakeVerifier{identity: Identity{Subject: "sub-1", Email: "a@example.com", Name: "A"}}
	repo := newTestRepo(t)
	g := NewGate(verifier, repo, zap.NewNop(), false, false)

	first, err := g.Authenticate(context.Background(), "cred")
	require.NoError(t, err)
	second, err := g.Authenticate(context.Background(), "cred")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestAuthenticateFailsWithoutDevFallbackWhenVerificationFails(t *testing.T) {
	verifier := fakeVerifier{err: apierr.New(apierr.AuthFailed, "boom")}
	g := NewGate(verifier, newTestRepo(t), zap.NewNop(), false, false)

	_, err := g.Authenticate(context.Background(), "bad-credential")
	require.True(t, apierr.Is(err, apierr.AuthFailed))
}

func TestAuthenticateRefusesDevFallbackInProduction(t *testing.T) {
	verifier := fakeVerifier{err: apierr.New(apierr.AuthFailed, "boom")}
	g := NewGate(verifier, newTestRepo(t), zap.NewNop(), true, true)

	_, err := g.Authenticate(context.Background(), "bad-credential")
	require.True(t, apierr.Is(err, apierr.AuthFailed))
}

func TestAuthenticateDevFallbackDecodesUnverifiedJWTShapedCredential(t *testing.T) {
	// header.payload.signature where payload is base64url({"sub":"s-1","email":"e@x.com","name":"n"})
	credential := "eyJhbGciOiJub25lIn0." +
		"eyJzdWIiOiJzLTEiLCJlbWFpbCI6ImVAeC5jb20iLCJuYW1lIjoibiJ9." +
		"sig"
	verifier := fakeVerifier{err: apierr.New(apierr.AuthFailed, "unreachable provider")}
	g := NewGate(verifier, newTestRepo(t), zap.NewNop(), true, false)

	user, err := g.Authenticate(context.Background(), credential)
	require.NoError(t, err)
	require.Equal(t, "e@x.com", user.Email)
}
