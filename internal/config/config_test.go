package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeRegistersDefaults(t *testing.T) {
	require.NoError(t, Initialize())
	assert.Equal(t, "runc", GetRuntimePath())
	assert.Equal(t, "/tmp/warpforge", GetErsatzRoot())
	assert.False(t, GetDefaultNetwork())
	assert.Equal(t, 32, GetEventQueueCapacity())
	assert.Equal(t, 5*time.Second, GetUnpackMaxElapsed())
}

func TestSetOverridesDefault(t *testing.T) {
	require.NoError(t, Initialize())
	Set(KeyRuntimePath, "/usr/bin/crun")
	assert.Equal(t, "/usr/bin/crun", GetRuntimePath())
}

func TestNilSingletonIsSafe(t *testing.T) {
	v = nil
	assert.Equal(t, "", GetRuntimePath())
	assert.Equal(t, 0, GetEventQueueCapacity())
	assert.False(t, GetDefaultNetwork())
	assert.Equal(t, time.Duration(0), GetUnpackMaxElapsed())
}
