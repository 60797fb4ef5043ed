package ircstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *ChannelStore {
	t.Helper()
	s, err := OpenChannelStore(filepath.Join(t.TempDir(), "channels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestChannelStoreAddListRemove(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Add("#beta"))
	require.NoError(t, s.Add("#Alpha"))
	require.NoError(t, s.Add("#beta")) // duplicate is fine

	channels, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"#alpha", "#beta"}, channels)

	require.NoError(t, s.Remove("#BETA"))
	channels, err = s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"#alpha"}, channels)
}

func TestChannelStoreEmptyList(t *testing.T) {
	s := openTestStore(t)
	channels, err := s.List()
	require.NoError(t, err)
	require.Empty(t, channels)
}
