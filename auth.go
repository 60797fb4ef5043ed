package irc

// AuthType selects the strategy used to authenticate with network services
// after registration completes.
type AuthType int

const (
	// AuthNone performs no services authentication.
	AuthNone AuthType = iota

	// AuthNickServ identifies to NickServ once the connection is ready.
	AuthNickServ
)

func (t AuthType) String() string {
	switch t {
	case AuthNone:
		return "none"
	case AuthNickServ:
		return "nickserv"
	default:
		return "unknown"
	}
}

// SetAuth stores services credentials. They are applied when a connection
// completes registration; a connection that is already ready does not
// identify again until the next connection.
func (c *Client) SetAuth(authType AuthType, name, pass string) {
	c.mu.Lock()
	c.authType = authType
	c.authName = name
	c.authPass = pass
	c.mu.Unlock()
}

// authLine builds the services identification message for the configured
// strategy, or reports false when none is configured.
func (c *Client) authLine() (*Message, bool) {
	c.mu.RLock()
	authType, name, pass := c.authType, c.authName, c.authPass
	nick := c.currentNick
	c.mu.RUnlock()

	switch authType {
	case AuthNickServ:
		if pass == "" {
			return nil, false
		}
		identify := "IDENTIFY " + pass
		if name != "" && name != nick {
			identify = "IDENTIFY " + name + " " + pass
		}
		return Msg("NickServ", identify), true
	default:
		return nil, false
	}
}
