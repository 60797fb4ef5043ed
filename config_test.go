package irc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuilderRequiresNick(t *testing.T) {
	_, err := NewBuilder("").Server("irc.example.test:6667").Build()
	require.Error(t, err)

	_, err = NewBuilder("bad nick").Server("irc.example.test:6667").Build()
	require.Error(t, err)
}

func TestBuilderRequiresServer(t *testing.T) {
	_, err := NewBuilder("kitteh").Build()
	require.Error(t, err)
}

func TestBuilderDefaults(t *testing.T) {
	c, err := NewBuilder("kitteh").
		Server("irc.example.test:6667").
		Supervisor(NewSupervisor()).
		Build()
	require.NoError(t, err)

	require.Equal(t, "kitteh", c.cfg.Nick)
	require.Equal(t, "kitteh", c.cfg.User)
	require.Equal(t, "kitteh", c.cfg.RealName)
	require.Equal(t, 1200*time.Millisecond, c.MessageDelay())
	require.Equal(t, "irc.example.test:6667", c.cfg.Name)
	require.Equal(t, "irc.example.test", c.ServerName())
	require.Equal(t, "kitteh", c.Nick())
	require.Equal(t, "kitteh", c.IntendedNick())
}

func TestBuilderRejectsMissingTLSMaterial(t *testing.T) {
	_, err := NewBuilder("kitteh").
		Server("irc.example.test:6697").
		SSL(true).
		SSLKeyCertChain("/nonexistent/cert.pem").
		SSLKey("/nonexistent/key.pem").
		Build()
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.True(t, connErr.Fatal)
}

func TestDefaultCapabilityPolicyIntersectsKnown(t *testing.T) {
	got := defaultCapabilityPolicy([]string{"multi-prefix", "sasl=PLAIN", "away-notify", "vendor/custom"})
	require.Equal(t, []string{"multi-prefix", "away-notify"}, got)

	require.Empty(t, defaultCapabilityPolicy([]string{"sasl"}))
	require.Empty(t, defaultCapabilityPolicy(nil))
}

func TestDefaultNickCollisionPolicy(t *testing.T) {
	require.Equal(t, "kitteh_", defaultNickCollisionPolicy("kitteh", "kitteh"))
	require.Equal(t, "kitteh__", defaultNickCollisionPolicy("kitteh", "kitteh_"))
}
