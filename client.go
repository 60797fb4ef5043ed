package irc

import (
	"crypto/tls"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// versionString is the reply sent for CTCP VERSION queries.
const versionString = "Kitteh IRC Client Library"

// A Client manages a single connection to an IRC server: it keeps the
// in-memory channel and user model synchronized with server state,
// dispatches inbound lines as typed events, and accepts outbound requests
// subject to flood-control pacing.
//
// Clients are built with a ClientBuilder and hold at most one live
// connection. Methods are safe for use from any goroutine.
type Client struct {
	cfg     Config
	log     *zap.SugaredLogger
	bus     EventBus
	sup     *Supervisor
	dial    DialFn
	tlsConf *tls.Config
	debugW  io.Writer // mirrors raw traffic when set

	delay atomic.Int64 // nanoseconds between non-priority sends

	mu           sync.RWMutex
	conn         *connection
	intendedNick string
	currentNick  string
	serverName   string
	desired      map[string]string       // folded name -> name as requested
	live         map[string]*channelInfo // channels the server confirmed

	authType AuthType
	authName string
	authPass string

	inputSink  *sink[string]
	outputSink *sink[string]
	excSink    *sink[error]
}

// channelInfo is the mutable membership record for one joined channel.
type channelInfo struct {
	name  string
	users map[string]Prefix // keyed by folded nick
}

// Channel is an immutable snapshot of one joined channel.
type Channel struct {
	Name  string
	Users []string
}

func newClient(cfg Config, log *zap.SugaredLogger, bus EventBus, sup *Supervisor, dial DialFn, tlsConf *tls.Config) *Client {
	host, _, _ := strings.Cut(cfg.ServerAddress, ":")
	c := &Client{
		cfg:          cfg,
		log:          log,
		bus:          bus,
		sup:          sup,
		dial:         dial,
		tlsConf:      tlsConf,
		intendedNick: cfg.Nick,
		currentNick:  cfg.Nick,
		serverName:   host,
		desired:      make(map[string]string),
		live:         make(map[string]*channelInfo),
		inputSink:    newSink[string](256),
		outputSink:   newSink[string](256),
		excSink:      newSink[error](64),
	}
	c.delay.Store(int64(cfg.MessageDelay))
	return c
}

// Connect starts a connection attempt. It returns immediately; progress and
// failure are reported through events and the exception listener. Calling
// Connect while a connection is live is a no-op.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return
	}
	x := newConnection(c)
	c.conn = x
	c.mu.Unlock()

	c.sup.register(x)
	go x.run()
}

// Shutdown disconnects with the given quit reason and disables reconnection.
// Queued non-priority lines are dropped.
func (c *Client) Shutdown(reason string) {
	if x := c.connection(); x != nil {
		x.shutdown(reason, false)
	}
}

// SendRawLine queues a raw protocol line, subject to pacing. It does nothing
// when the client has no connection.
func (c *Client) SendRawLine(line string) {
	if x := c.connection(); x != nil {
		x.sendRaw(line, false)
	}
}

// SendRawLineImmediately writes a raw protocol line to the socket at once,
// bypassing the paced queue and all sanity.
func (c *Client) SendRawLineImmediately(line string) {
	if x := c.connection(); x != nil {
		x.sendRaw(line, true)
	}
}

// SendMessage sends a PRIVMSG to a channel or nickname.
func (c *Client) SendMessage(target, message string) {
	c.send(Msg(target, message))
}

// SendNotice sends a NOTICE to a channel or nickname.
func (c *Client) SendNotice(target, message string) {
	c.send(Notice(target, message))
}

// SendCTCPMessage sends a CTCP-encoded PRIVMSG, adding the delimiters and
// quoting the characters that need quoting.
func (c *Client) SendCTCPMessage(target, message string) {
	c.send(NewMessage(CmdPrivmsg, target, ctcpWrap(message)).trailing())
}

func (c *Client) send(m *Message) {
	if x := c.connection(); x != nil {
		x.send(m, false)
	}
}

// AddChannel adds channels to the client's desired set, joining immediately
// when connected. Desired channels are rejoined after a reconnect.
func (c *Client) AddChannel(channels ...string) {
	c.mu.Lock()
	for _, ch := range channels {
		c.desired[foldName(ch)] = ch
	}
	x := c.conn
	c.mu.Unlock()

	if x == nil {
		return
	}
	for _, ch := range channels {
		x.send(Join(ch), false)
	}
}

// RemoveChannel removes a channel from the desired set, parting with reason
// when connected.
func (c *Client) RemoveChannel(channel, reason string) {
	c.mu.Lock()
	delete(c.desired, foldName(channel))
	x := c.conn
	c.mu.Unlock()

	if x == nil {
		return
	}
	if reason == "" {
		x.send(Part(channel), false)
	} else {
		x.send(PartWithReason(channel, reason), false)
	}
}

// SetNick changes the nickname the client wishes to hold.
func (c *Client) SetNick(nick string) {
	c.mu.Lock()
	c.intendedNick = nick
	x := c.conn
	c.mu.Unlock()

	if x != nil {
		x.send(Nick(nick), false)
	}
}

// Nick returns the nickname currently in use according to state tracking.
func (c *Client) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentNick
}

// IntendedNick returns the nickname the client tries to maintain, which may
// differ from Nick after a collision.
func (c *Client) IntendedNick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.intendedNick
}

// Name returns the client's diagnostic label.
func (c *Client) Name() string { return c.cfg.Name }

// ServerName returns the server name as learned during registration.
func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

// MessageDelay returns the current pause between non-priority sends.
func (c *Client) MessageDelay() time.Duration {
	return time.Duration(c.delay.Load())
}

// SetMessageDelay retunes the flood-control pacing. The delay remaining
// before the next send is preserved, so lowering the delay cannot be used to
// flush the queue instantly.
func (c *Client) SetMessageDelay(d time.Duration) {
	if d <= 0 {
		d = defaultMessageDelay
	}
	c.delay.Store(int64(d))
	if x := c.connection(); x != nil {
		x.pacer.setDelay(d)
	}
}

// SetInputListener registers the consumer for raw inbound lines. The
// listener runs on its own goroutine, in arrival order.
func (c *Client) SetInputListener(f func(line string)) {
	c.inputSink.setConsumer(f)
}

// SetOutputListener registers the consumer for raw outbound lines.
func (c *Client) SetOutputListener(f func(line string)) {
	c.outputSink.setConsumer(f)
}

// SetExceptionListener registers the consumer for connection errors.
func (c *Client) SetExceptionListener(f func(err error)) {
	c.excSink.setConsumer(f)
}

// Channels returns snapshots of the channels the client is currently on.
func (c *Client) Channels() []Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Channel, 0, len(c.live))
	for _, info := range c.live {
		out = append(out, snapshotChannel(info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupChannel returns a snapshot of one joined channel.
func (c *Client) LookupChannel(name string) (Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.live[foldName(name)]
	if !ok {
		return Channel{}, false
	}
	return snapshotChannel(info), true
}

func snapshotChannel(info *channelInfo) Channel {
	users := make([]string, 0, len(info.users))
	for _, p := range info.users {
		users = append(users, p.Nick.String())
	}
	sort.Strings(users)
	return Channel{Name: info.name, Users: users}
}

// foldName normalizes a nickname or channel name for map keys.
func foldName(s string) string { return strings.ToLower(s) }

func (c *Client) connection() *connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) connClosed(x *connection) {
	c.mu.Lock()
	if c.conn == x {
		c.conn = nil
		c.live = make(map[string]*channelInfo)
	}
	c.mu.Unlock()
}

// noteRegistered records the outcome of registration.
func (c *Client) noteRegistered(nick, server string) {
	c.mu.Lock()
	c.currentNick = nick
	if server != "" {
		c.serverName = server
	}
	c.mu.Unlock()
}

func (c *Client) desiredChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.desired))
	for _, ch := range c.desired {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func (c *Client) noteSelfJoin(channel string) {
	c.mu.Lock()
	key := foldName(channel)
	if _, ok := c.live[key]; !ok {
		c.live[key] = &channelInfo{name: channel, users: make(map[string]Prefix)}
	}
	c.desired[key] = channel
	c.mu.Unlock()
}

func (c *Client) noteSelfPart(channel string) {
	c.mu.Lock()
	key := foldName(channel)
	delete(c.live, key)
	delete(c.desired, key)
	c.mu.Unlock()
}

func (c *Client) noteUserJoin(channel string, user Prefix) {
	c.mu.Lock()
	if info, ok := c.live[foldName(channel)]; ok {
		info.users[foldName(user.Nick.String())] = user
	}
	c.mu.Unlock()
}

func (c *Client) noteUserPart(channel, nick string) {
	c.mu.Lock()
	if info, ok := c.live[foldName(channel)]; ok {
		delete(info.users, foldName(nick))
	}
	c.mu.Unlock()
}

// noteUserQuit removes nick from every channel and returns the channels it
// was seen on.
func (c *Client) noteUserQuit(nick string) []string {
	key := foldName(nick)
	c.mu.Lock()
	defer c.mu.Unlock()
	var channels []string
	for _, info := range c.live {
		if _, ok := info.users[key]; ok {
			delete(info.users, key)
			channels = append(channels, info.name)
		}
	}
	sort.Strings(channels)
	return channels
}

func (c *Client) noteNickChange(oldNick, newNick string, self bool) {
	oldKey, newKey := foldName(oldNick), foldName(newNick)
	c.mu.Lock()
	if self {
		c.currentNick = newNick
	}
	for _, info := range c.live {
		if p, ok := info.users[oldKey]; ok {
			delete(info.users, oldKey)
			p.Nick = Nickname(newNick)
			info.users[newKey] = p
		}
	}
	c.mu.Unlock()
}
