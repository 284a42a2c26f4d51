package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/bendatsko/dacroq/internal/apierr"
	"github.com/bendatsko/dacroq/internal/metrics"
	"github.com/bendatsko/dacroq/internal/storage"
	"github.com/bendatsko/dacroq/internal/storage/models"
)

// Gate implements POST /auth/google: verify a credential, fall back to an
// unverified decode only outside production and only when explicitly
// enabled, then upsert the local user row.
type Gate struct {
	Verifier         IdentityVerifier
	Repo             *storage.Repository
	Logger           *zap.Logger
	AllowDevFallback bool
	Production       bool
	Metrics          *metrics.DataMetrics
}

func NewGate(verifier IdentityVerifier, repo *storage.Repository, logger *zap.Logger, allowDevFallback, production bool) *Gate {
	return &Gate{
		Verifier:         verifier,
		Repo:             repo,
		Logger:           logger,
		AllowDevFallback: allowDevFallback,
		Production:       production,
	}
}

// Authenticate verifies credential, upserts the matching user, and returns
// it with last_login stamped.
func (g *Gate) Authenticate(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, apierr.New(apierr.InvalidInput, "credential is required")
	}

	outcome := "verified"
	identity, err := g.Verifier.Verify(ctx, credential)
	if err != nil {
		if !g.devFallbackEligible() {
			g.recordAttempt("failed")
			return nil, err
		}
		g.Logger.Warn("auth: falling back to unverified credential decode",
			zap.Error(err))
		identity, err = unverifiedClaims(credential)
		if err != nil {
			g.recordAttempt("failed")
			return nil, err
		}
		outcome = "dev_fallback"
	}

	user, err := g.Repo.UpsertUserByExternalSubject(ctx, identity.Subject, identity.Email, identity.Name)
	if err != nil {
		g.recordAttempt("upsert_failed")
		return nil, err
	}
	g.recordAttempt(outcome)
	return user, nil
}

func (g *Gate) devFallbackEligible() bool {
	return g.AllowDevFallback && !g.Production
}

func (g *Gate) recordAttempt(outcome string) {
	if g.Metrics != nil {
		g.Metrics.AuthAttempts.WithLabelValues(outcome).Inc()
	}
}
