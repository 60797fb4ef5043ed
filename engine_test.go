package irc_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	irc "github.com/jamierocks/KittehIRCClientLib"
	"github.com/jamierocks/KittehIRCClientLib/irctest"
)

// eventCollector is an EventBus that records every dispatched event.
type eventCollector struct {
	mu     sync.Mutex
	events []irc.Event
}

func (c *eventCollector) Dispatch(e irc.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *eventCollector) snapshot() []irc.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]irc.Event(nil), c.events...)
}

// waitForEvent blocks until an event of type T satisfying match (which may be
// nil) has been dispatched.
func waitForEvent[T irc.Event](t *testing.T, c *eventCollector, match func(T) bool) T {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		for _, e := range c.snapshot() {
			if ev, ok := e.(T); ok && (match == nil || match(ev)) {
				return ev
			}
		}
		if time.Now().After(deadline) {
			var zero T
			t.Fatalf("timed out waiting for %T; events: %#v", zero, c.snapshot())
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForLine(t *testing.T, s *irctest.Server, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		for _, line := range s.Received() {
			if line == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for line %q; received: %#v", want, s.Received())
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestClient(t *testing.T, server *irctest.Server, bus irc.EventBus) *irc.Client {
	t.Helper()
	client, err := irc.NewBuilder("kitteh").
		User("user").
		RealName("real").
		Name("test").
		MessageDelay(10 * time.Millisecond).
		DialFn(server.Dial).
		EventBus(bus).
		Supervisor(irc.NewSupervisor()).
		Build()
	require.NoError(t, err)
	return client
}

func TestRegistrationBurstAndWelcome(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		switch m.Command {
		case "USER":
			s.WriteString("NOTICE AUTH :*** hello")
			s.WriteString(":irc.test 001 kitteh :Welcome to the test network")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	connected := waitForEvent[irc.ClientConnected](t, events, nil)
	require.Equal(t, "kitteh", connected.Nick)
	require.Equal(t, "irc.test", connected.Server)
	require.Equal(t, "kitteh", client.Nick())

	waitForLine(t, server, "CAP END")
	lines := server.Received()
	require.GreaterOrEqual(t, len(lines), 4)
	require.Equal(t, []string{"CAP LS", "NICK kitteh", "USER user 0 * :real", "CAP END"}, lines[:4])
}

func TestCapabilityNegotiation(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		switch {
		case m.Command == "CAP" && m.Params.Get(1) == "LS":
			s.WriteString(":irc.test CAP * LS :multi-prefix sasl")
		case m.Command == "CAP" && m.Params.Get(1) == "REQ":
			s.WriteString(":irc.test CAP kitteh ACK :multi-prefix")
		case m.Command == "CAP" && m.Params.Get(1) == "END":
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	ack := waitForEvent[irc.CapabilitiesAcknowledged](t, events, nil)
	require.Equal(t, []string{"multi-prefix"}, ack.Capabilities)
	waitForEvent[irc.ClientConnected](t, events, nil)

	waitForLine(t, server, "CAP REQ :multi-prefix")
	waitForLine(t, server, "CAP END")
}

func TestCapabilityRejection(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		switch {
		case m.Command == "CAP" && m.Params.Get(1) == "LS":
			s.WriteString(":irc.test CAP * LS :multi-prefix")
		case m.Command == "CAP" && m.Params.Get(1) == "REQ":
			s.WriteString(":irc.test CAP kitteh NAK :multi-prefix")
		case m.Command == "CAP" && m.Params.Get(1) == "END":
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	nak := waitForEvent[irc.CapabilitiesRejected](t, events, nil)
	require.Equal(t, []string{"multi-prefix"}, nak.Requested)
	waitForEvent[irc.ClientConnected](t, events, nil)
}

func TestNickCollisionDuringRegistration(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	var nicks []string
	var mu sync.Mutex
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		switch m.Command {
		case "NICK":
			mu.Lock()
			nicks = append(nicks, m.Params.Get(1))
			n := len(nicks)
			mu.Unlock()
			if n == 1 {
				s.WriteString(":irc.test 433 * kitteh :Nickname is already in use")
			} else {
				s.WriteString(fmt.Sprintf(":irc.test 001 %s :Welcome", m.Params.Get(1)))
			}
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	connected := waitForEvent[irc.ClientConnected](t, events, nil)
	require.Equal(t, "kitteh_", connected.Nick)
	require.Equal(t, "kitteh_", client.Nick())
	require.Equal(t, "kitteh", client.IntendedNick())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"kitteh", "kitteh_"}, nicks)
}

func TestServerPingAnsweredImmediately(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		if m.Command == "USER" {
			s.WriteString(":irc.test 001 kitteh :Welcome")
			s.WriteString("PING :9324421")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	waitForLine(t, server, "PONG :9324421")
}

func TestChannelMembershipTracking(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		switch m.Command {
		case "USER":
			s.WriteString(":irc.test 001 kitteh :Welcome")
		case "JOIN":
			s.WriteString(fmt.Sprintf(":kitteh!user@host JOIN :%s", m.Params.Get(1)))
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.AddChannel("#asd")
	client.Connect()
	defer client.Shutdown("")

	joined := waitForEvent[irc.ChannelJoined](t, events, nil)
	require.Equal(t, "#asd", joined.Channel)
	ch, ok := client.LookupChannel("#asd")
	require.True(t, ok)
	require.Equal(t, "#asd", ch.Name)

	server.WriteString(":bob!b@h JOIN :#asd")
	waitForEvent[irc.UserJoined](t, events, nil)
	ch, _ = client.LookupChannel("#asd")
	require.Contains(t, ch.Users, "bob")

	server.WriteString(":bob!b@h PART #asd :bye")
	waitForEvent[irc.UserParted](t, events, nil)
	ch, _ = client.LookupChannel("#asd")
	require.NotContains(t, ch.Users, "bob")

	server.WriteString(":op!o@h KICK #asd kitteh :out")
	kicked := waitForEvent[irc.ChannelKicked](t, events, nil)
	require.Equal(t, "kitteh", kicked.Target)
	_, ok = client.LookupChannel("#asd")
	require.False(t, ok)
}

func TestUserQuitLeavesAllChannels(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		switch m.Command {
		case "USER":
			s.WriteString(":irc.test 001 kitteh :Welcome")
		case "JOIN":
			s.WriteString(fmt.Sprintf(":kitteh!user@host JOIN :%s", m.Params.Get(1)))
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.AddChannel("#one", "#two")
	client.Connect()
	defer client.Shutdown("")

	waitForEvent[irc.ChannelJoined](t, events, func(e irc.ChannelJoined) bool { return e.Channel == "#two" })
	server.WriteString(":bob!b@h JOIN :#one")
	server.WriteString(":bob!b@h JOIN :#two")
	waitForEvent[irc.UserJoined](t, events, func(e irc.UserJoined) bool { return e.Channel == "#two" })

	server.WriteString(":bob!b@h QUIT :gone")
	quit := waitForEvent[irc.UserQuit](t, events, nil)
	require.Equal(t, []string{"#one", "#two"}, quit.Channels)
}

func TestPrivmsgAndCTCPDispatch(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		if m.Command == "USER" {
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	waitForEvent[irc.ClientConnected](t, events, nil)

	server.WriteString(":bob!b@h PRIVMSG kitteh :hello there")
	msg := waitForEvent[irc.MessageReceived](t, events, nil)
	require.Equal(t, "hello there", msg.Text)
	require.Equal(t, "kitteh", msg.Target)

	server.WriteString(":bob!b@h PRIVMSG kitteh :\x01VERSION\x01")
	query := waitForEvent[irc.CTCPQueryReceived](t, events, nil)
	require.Equal(t, "VERSION", query.Subcommand)
}

func TestGracefulShutdownDropsQueuedLines(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		if m.Command == "USER" {
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	events := &eventCollector{}
	client, err := irc.NewBuilder("kitteh").
		User("user").
		RealName("real").
		MessageDelay(time.Hour). // nothing non-priority can flush
		DialFn(server.Dial).
		EventBus(events).
		Supervisor(irc.NewSupervisor()).
		Build()
	require.NoError(t, err)

	client.Connect()
	waitForEvent[irc.ClientConnected](t, events, nil)

	client.SendRawLine("PRIVMSG #a :one")
	client.SendRawLine("PRIVMSG #a :two")
	client.SendRawLine("PRIVMSG #a :three")
	client.Shutdown("bye")

	closed := waitForEvent[irc.ConnectionClosed](t, events, nil)
	require.False(t, closed.Reconnect)

	waitForLine(t, server, "QUIT :bye")
	for _, line := range server.Received() {
		require.NotContains(t, line, "PRIVMSG #a")
	}
}

func TestAbruptCloseRequestsReconnect(t *testing.T) {
	server := irctest.NewServer()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		if m.Command == "USER" {
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	waitForEvent[irc.ClientConnected](t, events, nil)

	server.Close()

	closed := waitForEvent[irc.ConnectionClosed](t, events, nil)
	require.True(t, closed.Reconnect)
}

// lockedBuffer is an io.Writer safe for the tap's reader and writer
// goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDebugTapMirrorsTraffic(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		if m.Command == "USER" {
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	tap := &lockedBuffer{}
	events := &eventCollector{}
	client, err := irc.NewBuilder("kitteh").
		User("user").
		RealName("real").
		MessageDelay(10 * time.Millisecond).
		DialFn(server.Dial).
		EventBus(events).
		Supervisor(irc.NewSupervisor()).
		Debug(tap).
		Build()
	require.NoError(t, err)

	client.Connect()
	defer client.Shutdown("")

	waitForEvent[irc.ClientConnected](t, events, nil)
	require.Contains(t, tap.String(), "-> NICK kitteh")
	require.Contains(t, tap.String(), "001 kitteh")
}

func TestNickRejectedWhileReady(t *testing.T) {
	server := irctest.NewServer()
	defer server.Close()
	server.OnMessage = func(s *irctest.Server, m *irc.Message) {
		if m.Command == "USER" {
			s.WriteString(":irc.test 001 kitteh :Welcome")
		}
	}

	events := &eventCollector{}
	client := newTestClient(t, server, events)
	client.Connect()
	defer client.Shutdown("")

	waitForEvent[irc.ClientConnected](t, events, nil)

	server.WriteString(":irc.test 433 kitteh admin :Nickname is already in use")
	rejected := waitForEvent[irc.NickRejected](t, events, nil)
	require.Equal(t, "admin", rejected.Attempted)
	require.Equal(t, "kitteh", client.Nick())
}
