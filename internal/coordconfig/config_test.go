package coordconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_MatchSpecValues(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "strict", cfg.Coordination.EnforceLeases)
	assert.Equal(t, 600*time.Second, cfg.Coordination.DefaultTTL)
	assert.Equal(t, 10, cfg.Coordination.LeaseRenewalThresholdPct)
	assert.Equal(t, 2, cfg.Coordination.MaxIndefiniteLeasesPerAgent)
	assert.True(t, cfg.GlobalOperations.RequireMainHistory)
	assert.Equal(t, 3600*time.Second, cfg.Locks.MaxAge)
}

func TestLoad_NoFilesReturnsDefaults(t *testing.T) {
	cfg, err := Load("", "", "")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_RepoLayerOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	repoPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(repoPath, []byte(`
coordination:
  enforce_leases: warn
  default_ttl_secs: 120
`), 0600))

	cfg, err := Load(repoPath, "", "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Coordination.EnforceLeases)
	assert.Equal(t, 120*time.Second, cfg.Coordination.DefaultTTL)
	assert.Equal(t, 3600*time.Second, cfg.Locks.MaxAge, "fields absent from the override layer keep their default")
}

func TestLoad_RepoLayerOverridesUserLayer(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.yaml")
	repoPath := filepath.Join(dir, "repo.yaml")
	require.NoError(t, os.WriteFile(userPath, []byte("coordination:\n  enforce_leases: warn\n"), 0600))
	require.NoError(t, os.WriteFile(repoPath, []byte("coordination:\n  enforce_leases: strict\n"), 0600))

	cfg, err := Load(repoPath, userPath, "")
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Coordination.EnforceLeases, "repository config must win over user config")
}

func TestValidate_RejectsUnknownEnforceMode(t *testing.T) {
	cfg := Defaults()
	cfg.Coordination.EnforceLeases = "bogus"
	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidate_RejectsOutOfRangeSampleRate(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.SampleRate = 1.5
	err := Validate(cfg)
	require.Error(t, err)
}

func TestEnvOverrides_AgentID(t *testing.T) {
	t.Setenv("COORD_AGENT_ID", "agent:from-env")
	cfg := Defaults()
	EnvOverrides(cfg)
	assert.Equal(t, "agent:from-env", cfg.Agent.ID)
}
