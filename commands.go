package irc

// Msg constructs a new Message of type PRIVMSG,
// with target being the intended target channel or nickname,
// and message being the text body.
func Msg(target, message string) *Message {
	return NewMessage(CmdPrivmsg, target, message).trailing()
}

// Notice constructs a new message of type NOTICE,
// with target being the intended target channel or nickname,
// and message being the text body.
func Notice(target, message string) *Message {
	return NewMessage(CmdNotice, target, message).trailing()
}

// Describe constructs a new Message of type CTCP ACTION,
// equivalent to the "/me" command of most IRC client programs.
func Describe(target, action string) *Message {
	return CTCP(target, "ACTION", action)
}

// CTCP constructs a CTCP (Client-to-Client Protocol) encoded message to the
// target, quoting the payload per the CTCP rules. command is the CTCP
// subcommand.
func CTCP(target, command, message string) *Message {
	return NewMessage(CmdPrivmsg, target, ctcpWrap(command+" "+message)).trailing()
}

// CTCPReply constructs a message encoded in the CTCP reply format.
// target should be the nickname that sent us a CTCP message,
// command is the subcommand that was sent to us,
// and message depends on the type of query.
func CTCPReply(target, command, message string) *Message {
	return NewMessage(CmdNotice, target, ctcpWrap(command+" "+message)).trailing()
}

// Nick constructs a nickname change command.
func Nick(name string) *Message {
	return NewMessage(CmdNick, name)
}

// Join constructs a channel join command.
func Join(channel string) *Message {
	return NewMessage(CmdJoin, channel)
}

// JoinWithKey constructs a channel join command for channels that require a key (channel mode +k is set).
func JoinWithKey(channel, key string) *Message {
	return NewMessage(CmdJoin, channel, key)
}

// Part constructs a leave (depart) command for channel.
func Part(channel string) *Message {
	return NewMessage(CmdPart, channel)
}

// PartWithReason is the same as Part, but with a message
// that may be shown to other clients.
func PartWithReason(channel, reason string) *Message {
	return NewMessage(CmdPart, channel, reason).trailing()
}

// Quit constructs a command that will cause the server to terminate the
// client's connection, and may display the quit message to clients that are
// configured to show quit messages.
func Quit(message string) *Message {
	if message == "" {
		return NewMessage(CmdQuit)
	}
	return NewMessage(CmdQuit, message).trailing()
}

// Ping constructs a command to PING the connection. The server will
// typically respond with PONG <message>.
func Ping(message string) *Message {
	return NewMessage(CmdPing, message).trailing()
}

// Pong builds the reply to a PING from the connection.
// The reply message must be the same as the original PING message.
func Pong(reply string) *Message {
	return NewMessage(CmdPong, reply).trailing()
}

// CapLS requests a list of the capabilities supported by the server,
// beginning capability negotiation.
func CapLS() *Message {
	return Cap("LS")
}

// CapReq requests that the listed capabilities be enabled for the client's
// connection. caps is a space-separated capability list.
func CapReq(caps string) *Message {
	return Cap("REQ", caps)
}

// CapEnd ends the capability negotiation.
func CapEnd() *Message {
	return Cap("END")
}

// Cap sends a CAP command as part of capability negotiation.
// args are the subcommand and parameters of the CAP command.
func Cap(args ...string) *Message {
	m := NewMessage(CmdCap, args...)
	if len(args) > 1 {
		m.trailing()
	}
	return m
}

// User is used at the beginning of a connection to specify
// the username and realname of a new user.
//
// realname may contain spaces.
func User(user, realname string) *Message {
	// The second param (mode) is typically not useful.
	// The third param is unused.
	// Sending "0" and "*" is specifically recommended by at least
	// one modern IRC overview, and is what mIRC does.
	return NewMessage(CmdUser, user, "0", "*", realname).trailing()
}

// Pass specifies the connection password.
func Pass(password string) *Message {
	return NewMessage(CmdPass, password)
}
