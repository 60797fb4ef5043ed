// Command ircbot is a minimal bot wiring the client library together: env
// configuration, structured logging, persisted autojoin channels, and an
// event loop that answers mentions.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	irc "github.com/jamierocks/KittehIRCClientLib"
	"github.com/jamierocks/KittehIRCClientLib/ircstore"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	server := envOr("IRC_SERVER", "irc.libera.chat:6697")
	nick := envOr("IRC_NICK", "kittehbot")

	store, err := ircstore.OpenChannelStore(envOr("IRC_CHANNEL_DB", "./channels.db"))
	if err != nil {
		log.Fatalw("open channel store", "error", err)
	}
	defer store.Close()

	bus := irc.EventBusFunc(func(e irc.Event) {
		switch e := e.(type) {
		case irc.ClientConnected:
			log.Infow("connected", "server", e.Server, "nick", e.Nick)
		case irc.ChannelJoined:
			log.Infow("joined", "channel", e.Channel)
			if err := store.Add(e.Channel); err != nil {
				log.Warnw("persist channel", "error", err)
			}
		case irc.ChannelParted:
			if err := store.Remove(e.Channel); err != nil {
				log.Warnw("forget channel", "error", err)
			}
		case irc.ChannelKicked:
			log.Warnw("kicked", "channel", e.Channel, "by", e.By.Nick, "reason", e.Reason)
		case irc.ConnectionClosed:
			log.Infow("connection closed", "reconnect", e.Reconnect)
		}
	})

	var client *irc.Client
	bot := irc.EventBusFunc(func(e irc.Event) {
		bus.Dispatch(e)
		if m, ok := e.(irc.MessageReceived); ok {
			if strings.HasPrefix(m.Text, client.Nick()+":") {
				client.SendMessage(m.Target, fmt.Sprintf("%s: you rang?", m.From.Nick))
			}
		}
	})

	builder := irc.NewBuilder(nick).
		Server(server).
		SSL(envOr("IRC_SSL", "1") == "1").
		Name("ircbot").
		Logger(log).
		EventBus(bot)
	if os.Getenv("IRC_DEBUG") == "1" {
		builder.Debug(os.Stdout)
	}
	if pass := os.Getenv("IRC_SERVER_PASSWORD"); pass != "" {
		builder.ServerPassword(pass)
	}
	if delay := os.Getenv("IRC_MESSAGE_DELAY_MS"); delay != "" {
		var ms int
		if _, err := fmt.Sscanf(delay, "%d", &ms); err == nil && ms > 0 {
			builder.MessageDelay(time.Duration(ms) * time.Millisecond)
		}
	}

	client, err = builder.Build()
	if err != nil {
		log.Fatalw("build client", "error", err)
	}

	if pass := os.Getenv("IRC_NICKSERV_PASSWORD"); pass != "" {
		client.SetAuth(irc.AuthNickServ, nick, pass)
	}

	channels, err := store.List()
	if err != nil {
		log.Fatalw("list channels", "error", err)
	}
	if len(channels) == 0 {
		channels = strings.Fields(envOr("IRC_CHANNELS", "#kitteh"))
	}
	client.AddChannel(channels...)

	client.Connect()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	client.Shutdown("bye")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
