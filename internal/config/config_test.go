package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/securebank_test")
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("ENCRYPTION_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
	// The counting window must cover the whole lock duration, otherwise
	// failures age out and the lock dissolves early.
	assert.GreaterOrEqual(t, cfg.LockoutWindow, cfg.LockoutDuration)
}

func TestLoadRejectsWindowShorterThanLockDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCKOUT_WINDOW", "10m")
	t.Setenv("LOCKOUT_DURATION", "30m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCKOUT_WINDOW")
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}
