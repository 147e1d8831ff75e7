package webhook

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pincer-org/Pincer-sub000/src/dispatch"
	"github.com/Pincer-org/Pincer-sub000/src/interactions"
	"github.com/Pincer-org/Pincer-sub000/src/rest"
	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

type signedServer struct {
	srv  *Server
	priv ed25519.PrivateKey
}

func newSignedServer(t *testing.T) *signedServer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	reg := interactions.NewRegistry()
	require.NoError(t, reg.Register(&interactions.Command{
		Name: "ping",
		Handler: func(_ context.Context, _ *interactions.CommandContext) (interface{}, error) {
			return "pong", nil
		},
	}))

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(apiSrv.Close)
	r := rest.NewREST(rest.RESTOptions{BotToken: "tok", BaseURL: apiSrv.URL, Logger: zerolog.Nop()})
	d := dispatch.NewDispatcher(zerolog.Nop())
	barrier := make(chan struct{})
	close(barrier)
	router := interactions.NewRouter(reg, interactions.NewInteractionAPI(r), r, d, barrier, zerolog.Nop())

	srv, err := NewServer(Options{
		PublicKey: hex.EncodeToString(pub),
		Router:    router,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return &signedServer{srv: srv, priv: priv}
}

func (s *signedServer) request(t *testing.T, body interface{}, sign bool) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/interactions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		timestamp := fmt.Sprintf("%d", time.Now().Unix())
		sig := ed25519.Sign(s.priv, append([]byte(timestamp), data...))
		req.Header.Set("X-Signature-Timestamp", timestamp)
		req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	}
	return req
}

func TestNewServerRejectsBadKey(t *testing.T) {
	_, err := NewServer(Options{PublicKey: "not-hex", Logger: zerolog.Nop()})
	assert.Error(t, err)
	_, err = NewServer(Options{PublicKey: "abcd", Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestUnsignedRequestRejected(t *testing.T) {
	s := newSignedServer(t)
	req := s.request(t, structs.Interaction{Type: structs.InteractionTypePing}, false)
	res, err := s.srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestForgedSignatureRejected(t *testing.T) {
	s := newSignedServer(t)
	req := s.request(t, structs.Interaction{Type: structs.InteractionTypePing}, true)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(make([]byte, ed25519.SignatureSize)))
	res, err := s.srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestPingAnswersPong(t *testing.T) {
	s := newSignedServer(t)
	req := s.request(t, structs.Interaction{Type: structs.InteractionTypePing}, true)
	res, err := s.srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var pong structs.InteractionResponse
	require.NoError(t, json.Unmarshal(body, &pong))
	assert.Equal(t, structs.InteractionResponseTypePong, pong.Type)
}

func TestCommandInteractionAnswersInline(t *testing.T) {
	s := newSignedServer(t)
	i := structs.Interaction{
		ID:    "i1",
		Type:  structs.InteractionTypeApplicationCommand,
		Token: "tk",
		Data: &structs.InteractionApplicationCommandData{
			Name: "ping",
			Type: structs.AppCmdTypeChatInput,
		},
	}
	req := s.request(t, i, true)
	res, err := s.srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var reply structs.InteractionResponse
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.Equal(t, structs.InteractionResponseTypeChannelMessageWithSource, reply.Type)
	require.NotNil(t, reply.Data)
	assert.Equal(t, "pong", reply.Data.Content)
}

func TestUnknownCommandRejected(t *testing.T) {
	s := newSignedServer(t)
	i := structs.Interaction{
		ID:    "i2",
		Type:  structs.InteractionTypeApplicationCommand,
		Token: "tk",
		Data: &structs.InteractionApplicationCommandData{
			Name: "ghost",
			Type: structs.AppCmdTypeChatInput,
		},
	}
	req := s.request(t, i, true)
	res, err := s.srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
