package irc

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamierocks/KittehIRCClientLib/ircdebug"
)

const (
	// capNegotiationTimeout bounds how long the engine waits for the
	// server to answer CAP LS before giving up on negotiation.
	capNegotiationTimeout = 10 * time.Second

	// nickReclaimInterval is how often the engine re-attempts the intended
	// nickname after losing it to a collision.
	nickReclaimInterval = 60 * time.Second
)

// connState is the lifecycle state of a connection. States advance
// monotonically, except that an abrupt loss jumps straight to closed.
type connState int32

const (
	stateConnecting connState = iota
	stateTLSHandshaking
	stateRegistering
	stateCapNegotiating
	stateReady
	stateShuttingDown
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateTLSHandshaking:
		return "tls handshaking"
	case stateRegistering:
		return "registering"
	case stateCapNegotiating:
		return "cap negotiating"
	case stateReady:
		return "ready"
	case stateShuttingDown:
		return "shutting down"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connection drives one socket from dial to close. All inbound handling runs
// on the reader goroutine, so engine fields below are mutated from a single
// place; the control API reaches in only through the thread-safe queue, the
// pacer's atomic delay, and writeNow's mutex.
type connection struct {
	c *Client

	writeMu sync.Mutex
	netConn atomic.Value // net.Conn; set once dial (and TLS) complete

	queue *sendQueue
	pacer *pacer
	dog   *watchdog
	clk   clock

	state     atomic.Int32
	reconnect atomic.Bool

	capEnded atomic.Bool
	capTimer *time.Timer

	// reader goroutine only
	capAdvertised []string
	capRequested  []string
	attemptedNick string

	pingCounter atomic.Uint64

	finishOnce sync.Once
	closedC    chan struct{}
}

func newConnection(c *Client) *connection {
	x := &connection{
		c:       c,
		queue:   &sendQueue{},
		clk:     systemClock,
		closedC: make(chan struct{}),
	}
	x.reconnect.Store(true)
	x.pacer = newPacer(x.queue, c.MessageDelay(), x.writeNow, func() bool {
		return x.getState() == stateReady
	}, x.clk)
	x.dog = newWatchdog(readerIdleTimeout, allIdleTimeout, x.onReaderIdle, x.onAllIdle, x.clk)
	return x
}

func (x *connection) getState() connState  { return connState(x.state.Load()) }
func (x *connection) setState(s connState) { x.state.Store(int32(s)) }

// run drives the connection to completion. It is the goroutine body started
// by Client.Connect.
func (x *connection) run() {
	defer x.finish()

	x.setState(stateConnecting)
	conn, err := x.c.dial()
	if err != nil {
		x.c.log.Warnw("connect failed", "client", x.c.cfg.Name, "error", err)
		x.c.excSink.offer(&ConnectionError{Op: "dial", Err: err})
		return
	}

	if x.c.tlsConf != nil {
		x.setState(stateTLSHandshaking)
		tlsConn := tls.Client(conn, x.c.tlsConf)
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			x.c.log.Errorw("tls handshake failed", "client", x.c.cfg.Name, "error", err)
			x.c.excSink.offer(&ConnectionError{Op: "tls handshake", Fatal: true, Err: err})
			x.reconnect.Store(false)
			return
		}
		conn = tlsConn
	}

	// a shutdown may have raced the dial
	if s := x.getState(); s == stateShuttingDown || s == stateClosed {
		_ = conn.Close()
		return
	}
	if w := x.c.debugW; w != nil {
		conn = ircdebug.WriteTo(w, conn, "-> ", "<- ")
	}
	x.netConn.Store(conn)

	x.dog.start()
	x.register()
	x.readLoop(conn)
}

// register performs the initial burst: CAP LS, optional PASS, NICK, USER.
// These are priority lines; rate limiting them would stall registration.
func (x *connection) register() {
	x.setState(stateRegistering)

	x.writeMsg(CapLS())
	if pass := x.c.cfg.ServerPassword; pass != "" {
		x.writeMsg(Pass(pass))
	}
	x.attemptedNick = x.c.IntendedNick()
	x.writeMsg(Nick(x.attemptedNick))
	x.writeMsg(User(x.c.cfg.User, x.c.cfg.RealName))

	x.setState(stateCapNegotiating)
	x.capTimer = time.AfterFunc(capNegotiationTimeout, x.capEnd)
}

func (x *connection) readLoop(conn io.Reader) {
	splitter := &lineSplitter{}
	s := bufio.NewScanner(conn)
	s.Split(splitter.split)

	for s.Scan() {
		frame := s.Bytes()
		if len(frame) == 0 {
			continue
		}
		x.dog.touchRead()
		line := decodeFrame(frame)
		x.c.inputSink.offer(line)
		x.c.log.Debugw("rx", "client", x.c.cfg.Name, "line", line)
		x.handleLine(line)
	}
	if err := s.Err(); err != nil && x.getState() != stateShuttingDown {
		x.c.excSink.offer(err)
	}
}

// handleLine is the engine's dispatch stage: it parses one inbound frame and
// reacts, keeping the client model in sync and emitting typed events.
func (x *connection) handleLine(line string) {
	m := new(Message)
	m.IncludePrefix()
	if err := m.UnmarshalText([]byte(line)); err != nil {
		x.c.bus.Dispatch(ProtocolError{Line: line, Err: err})
		return
	}
	if (m.Source == Prefix{}) {
		m.Source.Host = x.c.ServerName()
	}

	// any numeric while negotiating means the server has moved past (or does
	// not implement) capability negotiation
	if x.getState() == stateCapNegotiating && m.Command.isNumeric() {
		x.capEnd()
	}

	switch {
	case m.Command.is(CmdPing):
		x.writeMsg(Pong(m.Params.Get(1)))
	case m.Command.is(CmdCap):
		x.handleCap(m)
	case m.Command.is(RplWelcome):
		x.handleWelcome(m)
	case m.Command.is(RplErrNicknameInUse):
		x.handleNickInUse(m)
	case m.Command.is(CmdJoin):
		x.handleJoin(m)
	case m.Command.is(CmdPart):
		x.handlePart(m)
	case m.Command.is(CmdKick):
		x.handleKick(m)
	case m.Command.is(CmdQuit):
		x.handleQuit(m)
	case m.Command.is(CmdNick):
		x.handleNickChange(m)
	case m.Command.is(CmdPrivmsg):
		x.handlePrivmsg(m)
	case m.Command.is(CmdNotice):
		target, _ := m.Target()
		text, _ := m.Text()
		x.c.bus.Dispatch(NoticeReceived{From: m.Source, Target: target, Text: text})
	case m.Command.is(CmdError):
		x.c.log.Infow("server error", "client", x.c.cfg.Name, "message", m.Params.Get(1))
		x.c.bus.Dispatch(ServerLine{Raw: line, Message: m})
	default:
		x.c.bus.Dispatch(ServerLine{Raw: line, Message: m})
	}
}

// handleCap processes one line of the CAP LS/ACK/NAK exchange.
func (x *connection) handleCap(m *Message) {
	if len(m.Params) < 3 {
		x.c.bus.Dispatch(ProtocolError{Line: marshalLine(m), Err: fmt.Errorf("cap: malformed line")})
		return
	}
	caps := strings.Fields(m.Params.Get(len(m.Params)))

	switch strings.ToUpper(m.Params.Get(2)) {
	case "LS":
		x.capAdvertised = append(x.capAdvertised, caps...)
		// an asterisk before the capability list means more LS lines follow
		if m.Params.Get(3) == "*" {
			return
		}
		request := x.c.cfg.CapabilityPolicy(x.capAdvertised)
		if len(request) == 0 {
			x.capEnd()
			return
		}
		x.capRequested = request
		x.writeMsg(CapReq(strings.Join(request, " ")))
	case "ACK":
		x.c.bus.Dispatch(CapabilitiesAcknowledged{Capabilities: caps})
		x.capEnd()
	case "NAK":
		x.c.bus.Dispatch(CapabilitiesRejected{Requested: x.capRequested})
		x.capEnd()
	}
}

// capEnd completes capability negotiation exactly once. It may be invoked
// from the reader goroutine or from the negotiation timeout timer.
func (x *connection) capEnd() {
	if !x.capEnded.CompareAndSwap(false, true) {
		return
	}
	if t := x.capTimer; t != nil {
		t.Stop()
	}
	x.writeMsg(CapEnd())
}

// handleWelcome reacts to numeric 001: registration is complete.
func (x *connection) handleWelcome(m *Message) {
	x.capEnd()

	nick := m.Params.Get(1)
	if nick == "" {
		nick = x.attemptedNick
	}
	x.c.noteRegistered(nick, m.Source.Host)
	x.setState(stateReady)
	x.c.log.Infow("connected", "client", x.c.cfg.Name, "server", m.Source.Host, "nick", nick)
	x.c.bus.Dispatch(ClientConnected{Server: m.Source.Host, Nick: nick})

	x.afterReady()
}

// afterReady performs the post-registration chores: services auth, rejoining
// the desired channel set, and watching for a lost nickname.
func (x *connection) afterReady() {
	x.pacer.start()
	if line, ok := x.c.authLine(); ok {
		x.send(line, false)
	}
	for _, ch := range x.c.desiredChannels() {
		x.send(Join(ch), false)
	}
	go x.reclaimLoop()
}

func (x *connection) handleNickInUse(m *Message) {
	attempted := m.Params.Get(2)
	if x.getState() == stateReady {
		x.c.bus.Dispatch(NickRejected{Attempted: attempted})
		return
	}
	// registration: mutate and retry immediately
	x.attemptedNick = x.c.cfg.NickCollisionPolicy(x.c.IntendedNick(), x.attemptedNick)
	x.c.log.Debugw("nickname in use, retrying", "client", x.c.cfg.Name, "next", x.attemptedNick)
	x.writeMsg(Nick(x.attemptedNick))
}

// reclaimLoop periodically re-attempts the intended nickname while the
// connection holds a fallback one.
func (x *connection) reclaimLoop() {
	for {
		select {
		case <-x.closedC:
			return
		case <-x.clk.after(nickReclaimInterval):
			if x.getState() != stateReady {
				continue
			}
			intended := x.c.IntendedNick()
			if current := x.c.Nick(); !strings.EqualFold(current, intended) {
				x.send(Nick(intended), false)
			}
		}
	}
}

func (x *connection) handleJoin(m *Message) {
	channel, _ := m.Chan()
	if m.Source.Nick.Is(x.c.Nick()) {
		x.c.noteSelfJoin(channel)
		x.c.bus.Dispatch(ChannelJoined{Channel: channel})
		return
	}
	x.c.noteUserJoin(channel, m.Source)
	x.c.bus.Dispatch(UserJoined{Channel: channel, User: m.Source})
}

func (x *connection) handlePart(m *Message) {
	channel, _ := m.Chan()
	reason, _ := m.Text()
	if m.Source.Nick.Is(x.c.Nick()) {
		x.c.noteSelfPart(channel)
		x.c.bus.Dispatch(ChannelParted{Channel: channel, Reason: reason})
		return
	}
	x.c.noteUserPart(channel, m.Source.Nick.String())
	x.c.bus.Dispatch(UserParted{Channel: channel, User: m.Source, Reason: reason})
}

func (x *connection) handleKick(m *Message) {
	channel := m.Params.Get(1)
	target := m.Params.Get(2)
	reason := m.Params.Get(3)
	if Nickname(target).Is(x.c.Nick()) {
		x.c.noteSelfPart(channel)
	} else {
		x.c.noteUserPart(channel, target)
	}
	x.c.bus.Dispatch(ChannelKicked{Channel: channel, By: m.Source, Target: target, Reason: reason})
}

func (x *connection) handleQuit(m *Message) {
	reason, _ := m.Text()
	channels := x.c.noteUserQuit(m.Source.Nick.String())
	x.c.bus.Dispatch(UserQuit{User: m.Source, Reason: reason, Channels: channels})
}

func (x *connection) handleNickChange(m *Message) {
	newNick := m.Params.Get(1)
	self := m.Source.Nick.Is(x.c.Nick())
	x.c.noteNickChange(m.Source.Nick.String(), newNick, self)
	x.c.bus.Dispatch(NickChanged{User: m.Source, NewNick: newNick, Self: self})
}

func (x *connection) handlePrivmsg(m *Message) {
	target, _ := m.Target()
	text, _ := m.Text()
	if payload, ok := ctcpUnwrap(text); ok {
		sub, args := ctcpSplit(payload)
		x.c.bus.Dispatch(CTCPQueryReceived{From: m.Source, Target: target, Subcommand: sub, Args: args})
		if sub == "VERSION" && m.Source.Nick != "" {
			x.send(CTCPReply(m.Source.Nick.String(), "VERSION", versionString), false)
		}
		return
	}
	x.c.bus.Dispatch(MessageReceived{From: m.Source, Target: target, Text: text})
}

// ping emits a keepalive with a token unique to this connection.
func (x *connection) ping() {
	token := fmt.Sprintf("KICL%d", x.pingCounter.Add(1))
	x.writeMsg(Ping(token))
}

func (x *connection) onReaderIdle() {
	x.c.log.Warnw("read timeout", "client", x.c.cfg.Name)
	x.c.excSink.offer(errReaderIdle)
	x.shutdown("Reconnecting...", true)
}

func (x *connection) onAllIdle() {
	x.ping()
}

// send routes an outbound message: priority lines go straight to the socket,
// everything else waits its turn in the paced queue.
func (x *connection) send(m *Message, priority bool) {
	if priority {
		x.writeMsg(m)
		return
	}
	x.queue.enqueue(marshalLine(m))
}

func (x *connection) sendRaw(line string, priority bool) {
	if priority {
		x.writeNow(line)
		return
	}
	x.queue.enqueue(line)
}

// writeMsg writes m to the socket immediately.
func (x *connection) writeMsg(m *Message) {
	x.writeNow(marshalLine(m))
}

// writeNow frames line and writes it to the socket, bypassing the queue.
func (x *connection) writeNow(line string) {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	conn, ok := x.netConn.Load().(connWriter)
	if !ok {
		return
	}
	x.c.outputSink.offer(line)
	x.c.log.Debugw("tx", "client", x.c.cfg.Name, "line", line)
	x.dog.touchWrite()
	if _, err := conn.Write(encodeLine(line)); err != nil {
		if x.getState() != stateShuttingDown {
			x.c.excSink.offer(&WriteError{Err: err})
		}
		_ = conn.Close()
	}
}

type connWriter interface {
	Write([]byte) (int, error)
	Close() error
}

// shutdown performs the graceful teardown: QUIT as a priority line, then
// close the socket. Pending non-priority lines are dropped by finish.
func (x *connection) shutdown(reason string, reconnect bool) {
	x.reconnect.Store(reconnect)
	x.setState(stateShuttingDown)

	quit := "QUIT"
	if reason != "" {
		quit += " :" + reason
	}
	x.writeNow(quit)

	if conn, ok := x.netConn.Load().(connWriter); ok {
		_ = conn.Close()
	} else {
		// shutdown before the dial completed; nothing to flush
		x.finish()
	}
}

// finish is the single teardown path, safe to call more than once.
func (x *connection) finish() {
	x.finishOnce.Do(func() {
		x.setState(stateClosed)
		x.pacer.stop()
		x.dog.stop()
		if t := x.capTimer; t != nil {
			t.Stop()
		}
		if dropped := x.queue.clear(); dropped > 0 {
			x.c.log.Debugw("dropped queued lines", "client", x.c.cfg.Name, "count", dropped)
		}
		if conn, ok := x.netConn.Load().(connWriter); ok {
			_ = conn.Close()
		}
		close(x.closedC)

		reconnect := x.reconnect.Load()
		x.c.connClosed(x)
		x.c.sup.closed(x.c, x, reconnect)
	})
}

// marshalLine renders a message as a wire line without the terminator.
func marshalLine(m *Message) string {
	b, _ := m.MarshalText()
	return strings.TrimRight(string(b), "\r\n")
}
