package irc

import "strings"

// ctcpDelim wraps the payload of a CTCP-encoded PRIVMSG or NOTICE.
const ctcpDelim = "\x01"

// CTCP payloads use 0x10 as the quote character. NUL, CR and LF cannot appear
// on an IRC line at all, and a literal 0x10 must be doubled. A stray 0x01
// inside a payload would terminate the CTCP message early, so it is dropped
// entirely on encode.
var ctcpQuoter = strings.NewReplacer(
	"\x10", "\x10\x10",
	"\x00", "\x100",
	"\n", "\x10n",
	"\r", "\x10r",
	"\x01", "",
)

var ctcpDequoter = strings.NewReplacer(
	"\x10\x10", "\x10",
	"\x100", "\x00",
	"\x10n", "\n",
	"\x10r", "\r",
)

// ctcpQuote escapes a CTCP payload for transmission.
func ctcpQuote(payload string) string {
	return ctcpQuoter.Replace(payload)
}

// ctcpDequote reverses ctcpQuote.
func ctcpDequote(payload string) string {
	return ctcpDequoter.Replace(payload)
}

// ctcpWrap quotes payload and surrounds it with the CTCP delimiter.
func ctcpWrap(payload string) string {
	return ctcpDelim + ctcpQuote(payload) + ctcpDelim
}

// ctcpUnwrap reports whether body is a CTCP-encoded message body, and if so
// returns the dequoted payload. The trailing delimiter is optional because
// some clients omit it.
func ctcpUnwrap(body string) (payload string, ok bool) {
	if !strings.HasPrefix(body, ctcpDelim) {
		return "", false
	}
	body = strings.TrimPrefix(body, ctcpDelim)
	body = strings.TrimSuffix(body, ctcpDelim)
	return ctcpDequote(body), true
}

// ctcpSplit separates a CTCP payload into its subcommand and arguments,
// e.g. "PING 12345" -> ("PING", "12345").
func ctcpSplit(payload string) (subcommand, args string) {
	subcommand, args, _ = strings.Cut(payload, " ")
	return strings.ToUpper(subcommand), args
}
