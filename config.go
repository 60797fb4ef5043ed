package irc

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// defaultMessageDelay is the pause between outbound non-priority lines.
// Servers penalise sustained high send rates with disconnection.
const defaultMessageDelay = 1200 * time.Millisecond

// Config is the frozen bag of options a Client is built from. Use
// NewBuilder; a zero Config is not valid.
type Config struct {
	// ServerAddress is the "host:port" of the IRC server (required).
	ServerAddress string

	// BindAddress optionally pins the local side of the TCP connection.
	BindAddress string

	// SSL enables TLS on the connection.
	SSL bool

	// SSLKeyCertChain and SSLKey are optional paths to a PEM client
	// certificate chain and its private key. SSLKeyPassword decrypts the
	// key when it is passphrase-protected.
	SSLKeyCertChain string
	SSLKey          string
	SSLKeyPassword  string

	// TrustDecider, when set, replaces standard certificate verification
	// with a caller-supplied trust decision.
	TrustDecider TrustDecider

	// Nick is the nickname the client will try to hold (required).
	Nick string

	// User is the username part of the client's address.
	User string

	// RealName is the free-form gecos field. May contain spaces.
	RealName string

	// ServerPassword is sent via PASS during registration when non-empty.
	ServerPassword string

	// MessageDelay is the initial pause between non-priority sends.
	MessageDelay time.Duration

	// Name is a diagnostic label for this client, never visible on IRC.
	Name string

	// CapabilityPolicy selects which advertised capabilities to request.
	CapabilityPolicy CapabilityPolicy

	// NickCollisionPolicy derives the next nickname to attempt after the
	// server reports the current attempt in use during registration.
	NickCollisionPolicy NickCollisionPolicy
}

// CapabilityPolicy decides which of the server-advertised capability tokens
// the client requests during negotiation.
type CapabilityPolicy func(advertised []string) (request []string)

// NickCollisionPolicy derives the next nickname to attempt when attempted was
// rejected as already in use during registration.
type NickCollisionPolicy func(intended, attempted string) string

// knownCapabilities are the protocol extensions this library understands well
// enough to request by default.
var knownCapabilities = []string{
	"multi-prefix",
	"away-notify",
	"account-notify",
	"extended-join",
	"userhost-in-names",
	"cap-notify",
	"chghost",
}

// defaultCapabilityPolicy requests every known capability the server
// advertises.
func defaultCapabilityPolicy(advertised []string) []string {
	var request []string
	for _, known := range knownCapabilities {
		for _, adv := range advertised {
			// advertised tokens may carry "name=value"
			name, _, _ := strings.Cut(adv, "=")
			if name == known {
				request = append(request, known)
				break
			}
		}
	}
	return request
}

// defaultNickCollisionPolicy appends one underscore per attempt.
func defaultNickCollisionPolicy(_, attempted string) string {
	return attempted + "_"
}

// ClientBuilder assembles a Config and produces a Client. Methods return the
// builder for chaining; the first configuration error is reported by Build.
type ClientBuilder struct {
	cfg   Config
	log   *zap.SugaredLogger
	bus   EventBus
	sup   *Supervisor
	dial  DialFn
	debug io.Writer
}

// NewBuilder starts building a client that will connect with nick.
func NewBuilder(nick string) *ClientBuilder {
	return &ClientBuilder{cfg: Config{
		Nick:         nick,
		MessageDelay: defaultMessageDelay,
	}}
}

// Server sets the address ("host:port") of the IRC server.
func (b *ClientBuilder) Server(addr string) *ClientBuilder {
	b.cfg.ServerAddress = addr
	return b
}

// BindAddress sets the local address to bind the connection to.
func (b *ClientBuilder) BindAddress(addr string) *ClientBuilder {
	b.cfg.BindAddress = addr
	return b
}

// SSL enables or disables TLS.
func (b *ClientBuilder) SSL(on bool) *ClientBuilder {
	b.cfg.SSL = on
	return b
}

// SSLKeyCertChain sets the path to a PEM client certificate chain.
func (b *ClientBuilder) SSLKeyCertChain(path string) *ClientBuilder {
	b.cfg.SSLKeyCertChain = path
	return b
}

// SSLKey sets the path to the PEM private key for the client certificate.
func (b *ClientBuilder) SSLKey(path string) *ClientBuilder {
	b.cfg.SSLKey = path
	return b
}

// SSLKeyPassword sets the passphrase for an encrypted private key.
func (b *ClientBuilder) SSLKeyPassword(password string) *ClientBuilder {
	b.cfg.SSLKeyPassword = password
	return b
}

// TrustDecider installs a caller-supplied server certificate trust decision.
func (b *ClientBuilder) TrustDecider(td TrustDecider) *ClientBuilder {
	b.cfg.TrustDecider = td
	return b
}

// User sets the username. Defaults to the nickname.
func (b *ClientBuilder) User(user string) *ClientBuilder {
	b.cfg.User = user
	return b
}

// RealName sets the gecos field. Defaults to the nickname.
func (b *ClientBuilder) RealName(realName string) *ClientBuilder {
	b.cfg.RealName = realName
	return b
}

// ServerPassword sets the connection password sent via PASS.
func (b *ClientBuilder) ServerPassword(password string) *ClientBuilder {
	b.cfg.ServerPassword = password
	return b
}

// MessageDelay sets the initial pause between non-priority sends.
func (b *ClientBuilder) MessageDelay(d time.Duration) *ClientBuilder {
	b.cfg.MessageDelay = d
	return b
}

// Name sets the diagnostic label for the client.
func (b *ClientBuilder) Name(name string) *ClientBuilder {
	b.cfg.Name = name
	return b
}

// CapabilityPolicy replaces the default request-all-known policy.
func (b *ClientBuilder) CapabilityPolicy(p CapabilityPolicy) *ClientBuilder {
	b.cfg.CapabilityPolicy = p
	return b
}

// NickCollisionPolicy replaces the default append-underscore policy.
func (b *ClientBuilder) NickCollisionPolicy(p NickCollisionPolicy) *ClientBuilder {
	b.cfg.NickCollisionPolicy = p
	return b
}

// Logger sets the logger for protocol diagnostics. Defaults to a nop logger.
func (b *ClientBuilder) Logger(log *zap.SugaredLogger) *ClientBuilder {
	b.log = log
	return b
}

// EventBus sets the bus that receives dispatched events (required for a
// useful client; without one, events are discarded).
func (b *ClientBuilder) EventBus(bus EventBus) *ClientBuilder {
	b.bus = bus
	return b
}

// Supervisor attaches the client to a specific reconnect supervisor.
// Defaults to the process-wide supervisor.
func (b *ClientBuilder) Supervisor(s *Supervisor) *ClientBuilder {
	b.sup = s
	return b
}

// DialFn replaces the transport's dial function, mainly for tests.
func (b *ClientBuilder) DialFn(dial DialFn) *ClientBuilder {
	b.dial = dial
	return b
}

// Debug mirrors the connection's raw traffic to w, with "-> " and "<- "
// prefixes for outbound and inbound bytes.
func (b *ClientBuilder) Debug(w io.Writer) *ClientBuilder {
	b.debug = w
	return b
}

// Build validates the configuration, loads TLS material, and returns the
// Client. The client does not connect until Connect is called.
func (b *ClientBuilder) Build() (*Client, error) {
	cfg := b.cfg
	if cfg.Nick == "" {
		return nil, errors.New("build client: nickname is required")
	}
	if strings.ContainsAny(cfg.Nick, " \r\n") {
		return nil, fmt.Errorf("build client: invalid nickname %q", cfg.Nick)
	}
	if cfg.ServerAddress == "" && b.dial == nil {
		return nil, errors.New("build client: server address is required")
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.RealName == "" {
		cfg.RealName = cfg.Nick
	}
	if cfg.MessageDelay <= 0 {
		cfg.MessageDelay = defaultMessageDelay
	}
	if cfg.CapabilityPolicy == nil {
		cfg.CapabilityPolicy = defaultCapabilityPolicy
	}
	if cfg.NickCollisionPolicy == nil {
		cfg.NickCollisionPolicy = defaultNickCollisionPolicy
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ServerAddress
	}

	// Bad local TLS material is unrecoverable; fail construction rather
	// than every connection attempt.
	cert, err := loadClientCertificate(cfg)
	if err != nil {
		return nil, &ConnectionError{Op: "tls material", Fatal: true, Err: err}
	}

	log := b.log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	bus := b.bus
	if bus == nil {
		bus = EventBusFunc(func(Event) {})
	}
	sup := b.sup
	if sup == nil {
		sup = DefaultSupervisor
	}
	dial := b.dial
	if dial == nil {
		dial = netDialFn(cfg)
	}
	var tlsConf *tls.Config
	if cfg.SSL {
		tlsConf = newTLSConfig(cfg, cert)
	}

	c := newClient(cfg, log, bus, sup, dial, tlsConf)
	c.debugW = b.debug
	return c, nil
}
