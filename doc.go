/*
Package irc implements a client for the IRC protocol.

A Client maintains a single persistent, optionally TLS-protected connection
to one server. The connection engine frames the byte stream into protocol
lines, performs registration and capability negotiation, keeps an in-memory
model of the client's channels and users synchronized with server state, and
dispatches every inbound line as a typed event.

Outbound traffic is flood-controlled: regular lines wait in a paced queue
that releases one line per message-delay period, while engine-critical lines
(registration, PONG, QUIT) bypass the queue entirely.

Connections that drop (socket errors, write failures, or 250 seconds
without a byte from the server) are redialed automatically five seconds
later by a process-wide supervisor, carrying the nickname and desired
channel set over to the new connection. A voluntary Shutdown disables the
redial.

Clients are assembled with a ClientBuilder:

	bus := irc.EventBusFunc(func(e irc.Event) {
		switch e := e.(type) {
		case irc.ClientConnected:
			log.Println("connected as", e.Nick)
		case irc.MessageReceived:
			log.Printf("<%s> %s", e.From.Nick, e.Text)
		}
	})

	client, err := irc.NewBuilder("kitteh").
		Server("irc.example.com:6697").
		SSL(true).
		EventBus(bus).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	client.AddChannel("#kitteh")
	client.Connect()

Events are dispatched synchronously from the connection's reader goroutine,
in the order lines arrive. The input, output, and exception listeners run on
their own goroutines so that slow observers never stall the protocol.
*/
package irc
