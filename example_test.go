package irc_test

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	irc "github.com/jamierocks/KittehIRCClientLib"
)

// Example demonstrates a minimal bot: it connects, joins a channel, and
// replies when greeted.
func Example() {
	var client *irc.Client

	bus := irc.EventBusFunc(func(e irc.Event) {
		switch e := e.(type) {
		case irc.ClientConnected:
			fmt.Println("connected as", e.Nick)
		case irc.MessageReceived:
			if e.Text == "hello" {
				client.SendMessage(e.Target, "hi, "+e.From.Nick.String())
			}
		case irc.CapabilitiesAcknowledged:
			fmt.Println("negotiated:", e.Capabilities)
		case irc.ConnectionClosed:
			fmt.Println("closed; reconnecting:", e.Reconnect)
		}
	})

	client, err := irc.NewBuilder("kitteh").
		Server("irc.libera.chat:6697").
		SSL(true).
		RealName("Kitteh").
		EventBus(bus).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	client.AddChannel("#kitteh")
	client.Connect()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	client.Shutdown("bye")
}

// ExampleClient_SendCTCPMessage shows CTCP encoding: the payload is wrapped
// in the CTCP delimiter and quoted automatically.
func ExampleClient_SendCTCPMessage() {
	client, err := irc.NewBuilder("kitteh").
		Server("irc.libera.chat:6697").
		Build()
	if err != nil {
		log.Fatal(err)
	}
	client.Connect()
	client.SendCTCPMessage("somenick", "PING 1234567890")
}
