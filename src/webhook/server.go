package webhook

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/interactions"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// Server receives interactions over HTTPS instead of the gateway.
// Discord signs every delivery; unverified requests never reach the
// command router.
// https://discord.com/developers/docs/interactions/receiving-and-responding
type Server struct {
	app       *fiber.App
	router    *interactions.Router
	publicKey ed25519.PublicKey
	log       zerolog.Logger
}

type Options struct {
	// PublicKey is the application's hex-encoded ed25519 key from the
	// developer portal.
	PublicKey string
	Router    *interactions.Router
	Logger    zerolog.Logger
}

func NewServer(opts Options) (*Server, error) {
	key, err := hex.DecodeString(opts.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, errors.New("public key has wrong length")
	}
	s := &Server{
		router:    opts.Router,
		publicKey: ed25519.PublicKey(key),
		log:       opts.Logger.With().Str("component", "webhook").Logger(),
	}
	s.setupRouter()
	return s, nil
}

func (server *Server) setupRouter() {
	router := fiber.New()
	router.Use("/", server.VerifyKeyMiddleware)
	router.Use("/", server.PingRequestMiddleware)
	router.Post("/interactions", server.handleInteraction)
	server.app = router
}

func (server *Server) handleInteraction(c fiber.Ctx) error {
	req := new(structs.Interaction)
	if err := c.Bind().JSON(req); err != nil {
		server.log.Error().Err(err).Msg("malformed interaction body")
		return c.Status(http.StatusBadRequest).SendString("bad request")
	}
	if req.Type != structs.InteractionTypeApplicationCommand {
		return c.Status(http.StatusBadRequest).SendString("unsupported interaction type")
	}
	res, err := server.router.HandleHTTP(context.Background(), req)
	if err != nil {
		server.log.Warn().Err(err).Str("interaction", req.ID).Msg("interaction not handled")
		return c.Status(http.StatusBadRequest).SendString("unknown command")
	}
	return c.JSON(res)
}

// VerifyKeyMiddleware checks the ed25519 signature over
// timestamp+body before anything else runs.
func (server *Server) VerifyKeyMiddleware(c fiber.Ctx) error {
	timestamp := c.Get("X-Signature-Timestamp")
	signature := c.Get("X-Signature-Ed25519")
	if timestamp == "" || signature == "" {
		return c.Status(http.StatusUnauthorized).SendString("missing request signature")
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return c.Status(http.StatusUnauthorized).SendString("invalid request signature")
	}
	message := append([]byte(timestamp), c.BodyRaw()...)
	if !ed25519.Verify(server.publicKey, message, sig) {
		return c.Status(http.StatusUnauthorized).SendString("invalid request signature")
	}
	return c.Next()
}

// PingRequestMiddleware answers Discord's liveness PING with PONG.
func (server *Server) PingRequestMiddleware(c fiber.Ctx) error {
	i := new(structs.Interaction)
	if err := c.Bind().JSON(i); err != nil {
		return c.Next()
	}
	if i.Type == structs.InteractionTypePing {
		return c.JSON(structs.InteractionResponse{
			Type: structs.InteractionResponseTypePong,
		})
	}
	return c.Next()
}

// Start blocks serving until the context is cancelled.
func (server *Server) Start(ctx context.Context, addr string) error {
	server.log.Info().Str("addr", addr).Msg("webhook server starting")
	return server.app.Listen(addr, fiber.ListenConfig{
		GracefulContext: ctx,
		OnShutdownSuccess: func() {
			server.log.Info().Msg("webhook server stopped")
		},
	})
}

// App exposes the underlying fiber app, mainly for tests.
func (server *Server) App() *fiber.App { return server.app }
