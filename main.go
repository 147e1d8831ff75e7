package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/client"
	"github.com/Pincer-org/Pincer-sub000/src/dispatch"
	"github.com/Pincer-org/Pincer-sub000/src/gateway"
	"github.com/Pincer-org/Pincer-sub000/src/interactions"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
	"github.com/Pincer-org/Pincer-sub000/src/utils"
)

var signals = []os.Signal{
	os.Interrupt,
	syscall.SIGINT,
	syscall.SIGTERM,
}

func main() {
	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg, err := utils.LoadConfiguration()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	c := client.New(client.Options{
		BotToken:      cfg.DiscordBotToken,
		ApplicationID: cfg.DiscordAppsID,
		Intents: gateway.CombineIntents(
			gateway.GuildsIntent,
			gateway.GuildMessagesIntent,
			gateway.MessageContentIntent,
		),
		Compress:   true,
		GatewayURL: cfg.DiscordGateway,
		APIBaseURL: cfg.DiscordHTTPBaseURL,
		Logger:     log,
	})

	err = c.Command(&interactions.Command{
		Name:        "ping",
		Description: "Measure how long a round trip takes.",
		Cooldown: &interactions.Cooldown{
			Limit:  2,
			Window: 10 * time.Second,
			Scope:  interactions.ScopeUser,
		},
		Handler: func(ctx context.Context, cc *interactions.CommandContext) (interface{}, error) {
			start := time.Now()
			if err := cc.Defer(ctx); err != nil {
				return nil, err
			}
			return fmt.Sprintf("pong, took %s", time.Since(start).Round(time.Millisecond)), nil
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("register command")
	}

	c.Event(dispatch.EventMessageCreate, func(ctx context.Context, args ...interface{}) error {
		msg, ok := args[0].(*structs.Message)
		if !ok {
			return nil
		}
		log.Debug().Str("channel", msg.ChannelID).Str("author", msg.Author.Username).Msg("message")
		return nil
	})

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("client stopped")
	}
}
