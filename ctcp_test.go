package irc

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCTCPQuoteMappings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		quoted  string
	}{
		{"plain", "VERSION", "VERSION"},
		{"nul", "a\x00b", "a\x100b"},
		{"newline", "a\nb", "a\x10nb"},
		{"carriage return", "a\rb", "a\x10rb"},
		{"quote char", "a\x10b", "a\x10\x10b"},
		{"delimiter dropped", "a\x01b", "ab"},
		{"all together", "\x00\n\r\x10", "\x100\x10n\x10r\x10\x10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.quoted, ctcpQuote(tt.payload))
		})
	}
}

func TestCTCPQuoteRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		n := rng.Intn(64)
		b := make([]byte, n)
		for j := range b {
			// any byte except the CTCP delimiter, which encode removes
			for {
				b[j] = byte(rng.Intn(256))
				if b[j] != 0x01 {
					break
				}
			}
		}
		payload := string(b)
		require.Equal(t, payload, ctcpDequote(ctcpQuote(payload)), "payload %q", payload)
	}
}

func TestCTCPWrapUnwrap(t *testing.T) {
	wrapped := ctcpWrap("PING 12345")
	require.Equal(t, "\x01PING 12345\x01", wrapped)

	payload, ok := ctcpUnwrap(wrapped)
	require.True(t, ok)
	require.Equal(t, "PING 12345", payload)

	// trailing delimiter is optional on the wire
	payload, ok = ctcpUnwrap("\x01VERSION")
	require.True(t, ok)
	require.Equal(t, "VERSION", payload)

	_, ok = ctcpUnwrap("just text")
	require.False(t, ok)
}

func TestCTCPSplit(t *testing.T) {
	sub, args := ctcpSplit("ping 12 34")
	require.Equal(t, "PING", sub)
	require.Equal(t, "12 34", args)

	sub, args = ctcpSplit("VERSION")
	require.Equal(t, "VERSION", sub)
	require.Equal(t, "", args)
}

func TestCTCPMessageConstructor(t *testing.T) {
	m := CTCP("#chan", "ACTION", "waves")
	b, err := m.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "PRIVMSG #chan :\x01ACTION waves\x01\r\n", string(b))
	require.False(t, strings.Contains(string(b), "\x01\x01"))
}
