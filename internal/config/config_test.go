package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/loanops
auth:
  jwt_secret: secret
fineract:
  base_url: http://fineract.local/api/v1
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 600, cfg.Validation.CreditScoreThreshold)
	assert.Equal(t, "default", cfg.Fineract.DefaultTenant)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "loanops", cfg.Files.Company)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/loanops
auth:
  jwt_secret: from-file
fineract:
  base_url: http://fineract.local/api/v1
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadFromFile_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/loanops
fineract:
  base_url: http://fineract.local/api/v1
`)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFromFile(path)
	assert.EqualError(t, err, "auth.jwt_secret is required")
}
