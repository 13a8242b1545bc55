package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campus-access/internal/apiserver/auth"
	"campus-access/internal/apiserver/suggest"
	"campus-access/internal/config"
	"campus-access/internal/shared/infra"
	"campus-access/pkg/logging"
)

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestAssembleSeedsAndWires(t *testing.T) {
	cfg := config.Defaults()
	cfg.Seed.DemoData = true
	cfg.Simulation.Enabled = false

	a, err := Assemble(context.Background(), cfg, infra.NewMemoryInfrastructure(), logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	u, err := a.Authenticator.Login(ctx, "admin@ncat.edu", "admin123")
	require.NoError(t, err)

	reqs, err := a.Lifecycle.VisibleRequests(ctx, u)
	require.NoError(t, err)
	assert.Len(t, reqs, 4)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.IsType(t, &suggest.KeywordSuggester{}, a.Suggester)
}

func TestAuthConfigFallbacks(t *testing.T) {
	cfg := config.Defaults()
	out := AuthConfig(cfg, logging.Nop())
	assert.Equal(t, devJWTSecret, out.JWTSecret)
	assert.Equal(t, "@ncat.edu", out.EmailDomain)

	cfg.Auth.JWTSecret = "prod"
	cfg.Auth.RequireApproved = true
	out = AuthConfig(cfg, logging.Nop())
	assert.Equal(t, "prod", out.JWTSecret)
	assert.True(t, out.RequireApproved)
}

func TestNewSuggester(t *testing.T) {
	cfg := config.Defaults()
	cfg.Suggestion.Provider = "http"
	cfg.Suggestion.Endpoint = "http://127.0.0.1:1/v1/chat/completions"
	assert.IsType(t, &suggest.HTTPSuggester{}, NewSuggester(cfg, logging.Nop()))
}
