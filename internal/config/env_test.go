package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultEnvFile)
	content := `# Home Assistant long-lived token
CAMLOOP_CREDENTIAL="abc.def.ghi"
export CAMLOOP_LOG_LEVEL=debug

CAMLOOP_OTEL_ENDPOINT='http://collector:4318'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	vars, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"CAMLOOP_CREDENTIAL":    "abc.def.ghi",
		"CAMLOOP_LOG_LEVEL":     "debug",
		"CAMLOOP_OTEL_ENDPOINT": "http://collector:4318",
	}, vars)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	t.Parallel()

	vars, err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestLoadEnvFile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"missing equals", "CAMLOOP_CREDENTIAL\n", "missing '='"},
		{"empty key", "=value\n", "empty key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultEnvFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadEnvFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSeedEnv_ExplicitEnvironmentWins(t *testing.T) {
	t.Setenv("CAMLOOP_CREDENTIAL", "from-env")
	t.Setenv("CAMLOOP_LOG_LEVEL", "")
	os.Unsetenv("CAMLOOP_LOG_LEVEL")

	require.NoError(t, SeedEnv(map[string]string{
		"CAMLOOP_CREDENTIAL": "from-file",
		"CAMLOOP_LOG_LEVEL":  "info",
	}))

	assert.Equal(t, "from-env", os.Getenv("CAMLOOP_CREDENTIAL"))
	assert.Equal(t, "info", os.Getenv("CAMLOOP_LOG_LEVEL"))
}

func TestApplyEnv_LeavesUnsetFieldsAlone(t *testing.T) {
	t.Setenv("CAMLOOP_PORT", "")
	os.Unsetenv("CAMLOOP_PORT")
	t.Setenv("CAMLOOP_CREDENTIAL", "")
	os.Unsetenv("CAMLOOP_CREDENTIAL")
	t.Setenv("CAMLOOP_LOG_LEVEL", "error")

	cfg := validConfig()
	cfg.Credential = "kept"

	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "kept", cfg.Credential)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "error", cfg.LogLevel)
}
