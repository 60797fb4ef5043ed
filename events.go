package irc

// An Event is a typed notification dispatched by the connection engine.
// Events form a closed set of variants; user code switches on the concrete
// type, or on the capability interfaces ChannelEvent and UserListChange.
type Event interface {
	event()
}

// An EventBus receives every event the engine dispatches. Fan-out to
// subscribers is the bus's concern; the engine only requires Dispatch.
// Dispatch is called from the connection's reader goroutine, in the order
// lines arrive from the server.
type EventBus interface {
	Dispatch(Event)
}

// EventBusFunc adapts a function to the EventBus interface.
type EventBusFunc func(Event)

// Dispatch calls f(e).
func (f EventBusFunc) Dispatch(e Event) { f(e) }

// ChannelEvent is implemented by events scoped to a single channel.
type ChannelEvent interface {
	Event
	ChannelName() string
}

// UserListChange is implemented by events that alter the user list of one or
// more channels, for consumers that mirror channel membership.
type UserListChange interface {
	Event
	AffectedChannels() []string
}

// ClientConnected is dispatched when registration and capability negotiation
// complete and the connection reaches the ready state.
type ClientConnected struct {
	Server string // server name as reported during registration
	Nick   string // nickname actually in use
}

// ConnectionClosed is dispatched when a connection is torn down. Reconnect
// reports whether the supervisor will attempt to reconnect.
type ConnectionClosed struct {
	Reconnect bool
}

// CapabilitiesAcknowledged is dispatched for each CAP ACK received during
// capability negotiation.
type CapabilitiesAcknowledged struct {
	Capabilities []string
}

// CapabilitiesRejected is dispatched when the server NAKs a capability
// request. Requested carries the full rejected request list.
type CapabilitiesRejected struct {
	Requested []string
}

// ChannelJoined is dispatched when the server confirms this client joined a
// channel.
type ChannelJoined struct {
	Channel string
}

// ChannelParted is dispatched when this client leaves a channel.
type ChannelParted struct {
	Channel string
	Reason  string
}

// ChannelKicked is dispatched when a user, possibly this client, is kicked
// from a channel.
type ChannelKicked struct {
	Channel string
	By      Prefix
	Target  string
	Reason  string
}

// UserJoined is dispatched when another user joins a channel this client is
// on.
type UserJoined struct {
	Channel string
	User    Prefix
}

// UserParted is dispatched when another user leaves a channel this client is
// on.
type UserParted struct {
	Channel string
	User    Prefix
	Reason  string
}

// UserQuit is dispatched when a user sharing at least one channel with this
// client disconnects from the network.
type UserQuit struct {
	User     Prefix
	Reason   string
	Channels []string // channels the user was seen on
}

// NickChanged is dispatched when any visible user, including this client,
// changes nickname.
type NickChanged struct {
	User    Prefix
	NewNick string
	Self    bool
}

// NickRejected is dispatched when the server refuses a nickname while the
// connection is ready. During registration the engine retries silently
// instead.
type NickRejected struct {
	Attempted string
}

// MessageReceived is dispatched for PRIVMSG lines that are not CTCP-encoded.
type MessageReceived struct {
	From   Prefix
	Target string
	Text   string
}

// NoticeReceived is dispatched for every NOTICE line. CTCP-encoded notices
// (CTCP replies) are not decoded: Text holds the body with its delimiters.
type NoticeReceived struct {
	From   Prefix
	Target string
	Text   string
}

// CTCPQueryReceived is dispatched for CTCP-encoded PRIVMSG lines, with the
// payload dequoted and split into subcommand and arguments.
type CTCPQueryReceived struct {
	From       Prefix
	Target     string
	Subcommand string
	Args       string
}

// ServerLine is the generic fallback for inbound lines the engine does not
// handle specially.
type ServerLine struct {
	Raw     string
	Message *Message
}

// ProtocolError is dispatched when an inbound line cannot be parsed or
// violates protocol expectations. The connection continues.
type ProtocolError struct {
	Line string
	Err  error
}

func (ClientConnected) event()          {}
func (ConnectionClosed) event()         {}
func (CapabilitiesAcknowledged) event() {}
func (CapabilitiesRejected) event()     {}
func (ChannelJoined) event()            {}
func (ChannelParted) event()            {}
func (ChannelKicked) event()            {}
func (UserJoined) event()               {}
func (UserParted) event()               {}
func (UserQuit) event()                 {}
func (NickChanged) event()              {}
func (NickRejected) event()             {}
func (MessageReceived) event()          {}
func (NoticeReceived) event()           {}
func (CTCPQueryReceived) event()        {}
func (ServerLine) event()               {}
func (ProtocolError) event()            {}

func (e ChannelJoined) ChannelName() string { return e.Channel }
func (e ChannelParted) ChannelName() string { return e.Channel }
func (e ChannelKicked) ChannelName() string { return e.Channel }
func (e UserJoined) ChannelName() string    { return e.Channel }
func (e UserParted) ChannelName() string    { return e.Channel }

func (e UserJoined) AffectedChannels() []string { return []string{e.Channel} }
func (e UserParted) AffectedChannels() []string { return []string{e.Channel} }
func (e UserQuit) AffectedChannels() []string   { return e.Channels }
