package irc

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// dialTimeout bounds the TCP connect attempt.
const dialTimeout = 30 * time.Second

// DialFn establishes the raw transport connection. The default implementation
// dials the configured server over TCP; tests substitute in-memory pipes.
type DialFn func() (net.Conn, error)

// A TrustDecider makes the trust decision for a server certificate chain,
// replacing standard verification.
type TrustDecider interface {
	Verify(chain []*x509.Certificate) bool
}

// TrustDeciderFunc adapts a function to the TrustDecider interface.
type TrustDeciderFunc func(chain []*x509.Certificate) bool

// Verify calls f(chain).
func (f TrustDeciderFunc) Verify(chain []*x509.Certificate) bool { return f(chain) }

// netDialFn returns the production dial function: TCP to the configured
// server, optionally bound to a local address, with Nagle's algorithm
// disabled so short protocol lines are not batched.
func netDialFn(cfg Config) DialFn {
	return func() (net.Conn, error) {
		d := net.Dialer{Timeout: dialTimeout}
		if cfg.BindAddress != "" {
			local, err := net.ResolveTCPAddr("tcp", cfg.BindAddress)
			if err != nil {
				return nil, fmt.Errorf("resolve bind address: %w", err)
			}
			d.LocalAddr = local
		}
		conn, err := d.Dial("tcp", cfg.ServerAddress)
		if err != nil {
			return nil, err
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		return conn, nil
	}
}

// newTLSConfig builds the TLS client configuration. When a TrustDecider is
// configured, the standard chain verification is replaced by the caller's
// trust decision.
func newTLSConfig(cfg Config, cert *tls.Certificate) *tls.Config {
	host, _, err := net.SplitHostPort(cfg.ServerAddress)
	if err != nil {
		host = cfg.ServerAddress
	}
	tc := &tls.Config{ServerName: host}
	if cert != nil {
		tc.Certificates = []tls.Certificate{*cert}
	}
	if td := cfg.TrustDecider; td != nil {
		tc.InsecureSkipVerify = true
		tc.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			chain := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				c, err := x509.ParseCertificate(raw)
				if err != nil {
					return fmt.Errorf("parse server certificate: %w", err)
				}
				chain = append(chain, c)
			}
			if !td.Verify(chain) {
				return errors.New("server certificate rejected by trust decider")
			}
			return nil
		}
	}
	return tc
}

// loadClientCertificate reads the configured client certificate chain and
// private key. Returns nil when no client certificate is configured.
func loadClientCertificate(cfg Config) (*tls.Certificate, error) {
	if cfg.SSLKeyCertChain == "" && cfg.SSLKey == "" {
		return nil, nil
	}
	if cfg.SSLKeyCertChain == "" || cfg.SSLKey == "" {
		return nil, errors.New("client certificate requires both a certificate chain and a key")
	}

	certPEM, err := os.ReadFile(cfg.SSLKeyCertChain)
	if err != nil {
		return nil, fmt.Errorf("read certificate chain: %w", err)
	}
	keyPEM, err := os.ReadFile(cfg.SSLKey)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	if cfg.SSLKeyPassword != "" {
		keyPEM, err = decryptKeyPEM(keyPEM, cfg.SSLKeyPassword)
		if err != nil {
			return nil, err
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &cert, nil
}

func decryptKeyPEM(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("private key is not PEM-encoded")
	}
	if !x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy PEM encryption is what passphrase-protected IRC client keys use
		return keyPEM, nil
	}
	der, err := x509.DecryptPEMBlock(block, []byte(password)) //nolint:staticcheck
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
