package poolconfig

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadWithNoFileAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().InitialPoolsPerNode, cfg.InitialPoolsPerNode)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	yamlBody := "initial_pools_per_node: 3\nmax_pools_per_node: 8\nmin_pools_per_node: 1\nstartup_nodes:\n  - redis://node-a:6379\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.InitialPoolsPerNode)
	assert.Equal(t, 8, cfg.MaxPoolsPerNode)
	assert.Equal(t, []string{"redis://node-a:6379"}, cfg.StartupNodes)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestEnvironmentOverridesTakePrecedence(t *testing.T) {
	t.Setenv("POOLMGR_INITIAL_POOLS_PER_NODE", "7")
	t.Setenv("POOLMGR_MAX_POOLS_PER_NODE", "9")
	t.Setenv("POOLMGR_HEALTH_CHECK_INTERVAL", "45s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.InitialPoolsPerNode)
	assert.Equal(t, 9, cfg.MaxPoolsPerNode)
	assert.Equal(t, 45*time.Second, cfg.HealthCheckInterval)
}

func TestValidateRejectsMaxBelowInitial(t *testing.T) {
	cfg := Default()
	cfg.InitialPoolsPerNode = 4
	cfg.MaxPoolsPerNode = 2
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsMinAboveInitial(t *testing.T) {
	cfg := Default()
	cfg.InitialPoolsPerNode = 1
	cfg.MinPoolsPerNode = 2
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsClusterModeWithoutStartupNodes(t *testing.T) {
	cfg := Default()
	cfg.UseCluster = true
	cfg.StartupNodes = nil
	require.Error(t, Validate(cfg))
}

func TestValidateAcceptsClusterModeWithStartupNodes(t *testing.T) {
	cfg := Default()
	cfg.UseCluster = true
	cfg.StartupNodes = []string{"redis://node-a:6379"}
	require.NoError(t, Validate(cfg))
}
