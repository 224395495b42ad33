package localstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	return s, path
}

func TestRoundTripAcrossReopen(t *testing.T) {
	s, path := tempStore(t)
	require.NoError(t, s.SetLastSelected("requests", "r42"))
	require.NoError(t, s.SetLoginDate("2026-08-31"))
	require.NoError(t, s.TouchActivity(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, s.DismissInstallPrompt())

	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "r42", reopened.LastSelected("requests"))
	assert.Equal(t, "2026-08-31", reopened.LoginDate())
	assert.True(t, reopened.InstallPromptDismissed())
	assert.False(t, reopened.LastActive().IsZero())
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.LoginDate())
}

func TestClearRemovesFile(t *testing.T) {
	s, path := tempStore(t)
	require.NoError(t, s.SetLoginDate("2026-08-31"))
	require.NoError(t, s.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.LoginDate())

	// Clearing twice is fine.
	require.NoError(t, s.Clear())
}
