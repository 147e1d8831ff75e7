package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

type GatewayStatus = string

const (
	StatusDisconnected GatewayStatus = "DISCONNECTED"
	StatusConnecting   GatewayStatus = "CONNECTING"
	StatusIdentifying  GatewayStatus = "IDENTIFYING"
	StatusResuming     GatewayStatus = "RESUMING"
	StatusReady        GatewayStatus = "READY"
	StatusReconnecting GatewayStatus = "RECONNECTING"
	StatusClosed       GatewayStatus = "CLOSED"
)

type GatewayOpcode = int

const (
	OpcodeDispatch       GatewayOpcode = 0
	OpcodeHeartbeat      GatewayOpcode = 1
	OpcodeIdentify       GatewayOpcode = 2
	OpcodePresenceUpdate GatewayOpcode = 3
	OpcodeResume         GatewayOpcode = 6
	OpcodeReconnect      GatewayOpcode = 7
	OpcodeInvalidSession GatewayOpcode = 9
	OpcodeHello          GatewayOpcode = 10
	OpcodeHeartbeatAck   GatewayOpcode = 11
)

type GatewayCloseEventCode = int

const (
	CloseUnknownError         GatewayCloseEventCode = 4000
	CloseUnknownOpcode        GatewayCloseEventCode = 4001
	CloseDecodeError          GatewayCloseEventCode = 4002
	CloseNotAuthenticated     GatewayCloseEventCode = 4003
	CloseAuthenticationFailed GatewayCloseEventCode = 4004
	CloseAlreadyAuthenticated GatewayCloseEventCode = 4005
	CloseInvalidSeq           GatewayCloseEventCode = 4007
	CloseRateLimited          GatewayCloseEventCode = 4008
	CloseSessionTimedOut      GatewayCloseEventCode = 4009
	CloseInvalidShard         GatewayCloseEventCode = 4010
	CloseShardingRequired     GatewayCloseEventCode = 4011
	CloseInvalidAPIVersion    GatewayCloseEventCode = 4012
	CloseInvalidIntents       GatewayCloseEventCode = 4013
	CloseDisallowedIntents    GatewayCloseEventCode = 4014
)

var (
	ErrInvalidToken         = errors.New("authentication failed: invalid token")
	ErrInvalidShard         = errors.New("invalid shard configuration")
	ErrShardingRequired     = errors.New("sharding is required for this bot")
	ErrInvalidAPIVersion    = errors.New("invalid gateway api version")
	ErrInvalidIntents       = errors.New("invalid intents")
	ErrDisallowedIntents    = errors.New("disallowed intent. you may have tried to specify an intent that you have not enabled")
	ErrHeartbeatTimeout     = errors.New("heartbeat ack not received in time")
	ErrReconnectRequested   = errors.New("server requested reconnect")
	ErrGatewayIsAlreadyOpen = errors.New("gateway is already open")
)

// EventSink receives everything the shard produces: raw dispatch
// frames in arrival order, and session-fatal errors.
type EventSink interface {
	ProcessRaw(shardID uint, e *structs.RawEvent)
	ProcessError(shardID uint, err error)
}

type Options struct {
	BotToken   string
	Intents    GatewayIntent
	ShardID    uint
	ShardCount uint

	Version    uint   // gateway/API version, defaults to 9
	GatewayURL string // defaults to wss://gateway.discord.gg
	Compress   bool   // request zlib-stream transport compression
	Presence   interface{}

	Dialer           *websocket.Dialer
	HandshakeTimeout time.Duration
	Sink             EventSink
	Logger           zerolog.Logger
}

// Gateway owns one shard's WebSocket and keeps the session alive
// through transient failures. Session fields are mutated only by the
// run goroutine; readers go through the accessor methods.
type Gateway struct {
	opts  Options
	wsurl string

	writeMu sync.Mutex // serializes writes to the active conn
	stateMu sync.RWMutex
	wsConn  *websocket.Conn
	status  GatewayStatus

	sessionID        string
	resumeGatewayURL string

	sequence    atomic.Uint64
	hasSequence atomic.Bool
	lastAck     atomic.Bool
	opened      atomic.Bool

	heartbeatInterval time.Duration
	log               zerolog.Logger
	done              chan struct{}
}

func New(opts Options) *Gateway {
	if opts.Version == 0 {
		opts.Version = 9
	}
	if opts.GatewayURL == "" {
		opts.GatewayURL = "wss://gateway.discord.gg"
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 30 * time.Second
	}
	g := &Gateway{
		opts:   opts,
		status: StatusDisconnected,
		log: opts.Logger.With().
			Str("component", "gateway").
			Uint("shard", opts.ShardID).
			Logger(),
		done: make(chan struct{}),
	}
	g.wsurl = g.buildURL(opts.GatewayURL)
	return g
}

// buildURL appends the version/encoding/compression query to a
// gateway host. Also applied to resume_gateway_url, which arrives
// bare.
func (g *Gateway) buildURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := url.Values{}
	q.Set("v", fmt.Sprintf("%d", g.opts.Version))
	q.Set("encoding", "json")
	if g.opts.Compress {
		q.Set("compress", "zlib-stream")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Open starts the session loop. It returns once the loop is running;
// readiness is observed through the sink's READY dispatch.
func (g *Gateway) Open(ctx context.Context) error {
	if !g.opened.CompareAndSwap(false, true) {
		return ErrGatewayIsAlreadyOpen
	}
	go g.run(ctx)
	return nil
}

// Done is closed when the session loop has fully stopped.
func (g *Gateway) Done() <-chan struct{} { return g.done }

func (g *Gateway) Status() GatewayStatus {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.status
}

func (g *Gateway) setStatus(s GatewayStatus) {
	g.stateMu.Lock()
	g.status = s
	g.stateMu.Unlock()
}

func (g *Gateway) SessionID() string {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.sessionID
}

func (g *Gateway) Sequence() uint64 { return g.sequence.Load() }

func (g *Gateway) ShardID() uint { return g.opts.ShardID }

// disposition decides what the run loop does after a connection ends.
type disposition int

const (
	dispositionResume disposition = iota
	dispositionInvalidate
	dispositionFatal
)

func (g *Gateway) run(ctx context.Context) {
	defer close(g.done)
	defer g.setStatus(StatusClosed)
	attempt := 0
	resume := false
	for {
		if ctx.Err() != nil {
			return
		}
		g.setStatus(StatusConnecting)
		sawReady, disp, err := g.connectOnce(ctx, resume)
		if sawReady {
			attempt = 0
		}
		if ctx.Err() != nil {
			return
		}
		switch disp {
		case dispositionFatal:
			g.log.Error().Err(err).Msg("session terminated")
			if g.opts.Sink != nil {
				g.opts.Sink.ProcessError(g.opts.ShardID, err)
			}
			return
		case dispositionInvalidate:
			g.clearSession()
			resume = false
			// Re-identify after a short jittered wait so a burst of
			// invalidated shards does not stampede the gateway.
			wait := time.Second + time.Duration(rand.Int63n(int64(4*time.Second)))
			g.log.Warn().Err(err).Dur("wait", wait).Msg("session invalidated, re-identifying")
			if sleepCtx(ctx, wait) != nil {
				return
			}
		case dispositionResume:
			resume = g.canResume()
			g.setStatus(StatusReconnecting)
			wait := backoffFor(attempt)
			g.log.Warn().Err(err).Dur("wait", wait).Bool("resume", resume).Msg("connection lost, reconnecting")
			if sleepCtx(ctx, wait) != nil {
				return
			}
			attempt++
		}
	}
}

// backoffFor returns an exponential backoff with jitter, capped near
// thirty seconds.
func backoffFor(attempt int) time.Duration {
	base := time.Duration(math.Min(math.Pow(2, float64(attempt)), 30)) * time.Second
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return base + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *Gateway) canResume() bool {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.sessionID != "" && g.hasSequence.Load()
}

func (g *Gateway) clearSession() {
	g.stateMu.Lock()
	g.sessionID = ""
	g.resumeGatewayURL = ""
	g.stateMu.Unlock()
	g.sequence.Store(0)
	g.hasSequence.Store(false)
}

// connectOnce runs a single connection from dial to disconnect and
// reports how the loop should continue.
func (g *Gateway) connectOnce(ctx context.Context, resume bool) (sawReady bool, disp disposition, err error) {
	dialURL := g.wsurl
	if resume {
		g.stateMu.RLock()
		if g.resumeGatewayURL != "" {
			dialURL = g.buildURL(g.resumeGatewayURL)
		}
		g.stateMu.RUnlock()
	}
	conn, _, err := g.opts.Dialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return false, dispositionResume, err
	}
	g.stateMu.Lock()
	g.wsConn = conn
	g.stateMu.Unlock()
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	next, stop := g.frameSource(conn)
	defer stop()

	// HELLO must arrive within the handshake window.
	conn.SetReadDeadline(time.Now().Add(g.opts.HandshakeTimeout))
	hello, err := next()
	if err != nil {
		return false, dispositionResume, err
	}
	if hello.Op != OpcodeHello {
		return false, dispositionResume, fmt.Errorf("expected HELLO, got opcode %d", hello.Op)
	}
	helloD := structs.HelloEvent{}
	if err := json.Unmarshal(hello.D, &helloD); err != nil {
		return false, dispositionResume, err
	}
	conn.SetReadDeadline(time.Time{})
	g.heartbeatInterval = time.Duration(helloD.HeartbeatInterval) * time.Millisecond

	immediate := make(chan struct{}, 1)
	g.lastAck.Store(true)
	go g.heartbeating(connCtx, conn, g.heartbeatInterval, immediate)

	if resume {
		g.setStatus(StatusResuming)
		err = g.sendResume(conn)
	} else {
		g.setStatus(StatusIdentifying)
		err = g.sendIdentify(conn)
	}
	if err != nil {
		return false, dispositionResume, err
	}

	for {
		e, rerr := next()
		if rerr != nil {
			disp, err := g.classifyClose(rerr)
			return sawReady, disp, err
		}
		switch e.Op {
		case OpcodeDispatch:
			g.sequence.Store(e.S)
			g.hasSequence.Store(true)
			g.handleDispatch(e)
			if e.T == structs.EventNameReady {
				sawReady = true
			}
		case OpcodeHeartbeat:
			// Server asked for an immediate heartbeat.
			select {
			case immediate <- struct{}{}:
			default:
			}
		case OpcodeHeartbeatAck:
			g.lastAck.Store(true)
		case OpcodeReconnect:
			g.closeWithCode(conn, websocket.CloseServiceRestart, "reconnect requested")
			return sawReady, dispositionResume, ErrReconnectRequested
		case OpcodeInvalidSession:
			var resumable structs.InvalidSessionEvent
			_ = json.Unmarshal(e.D, &resumable)
			g.closeWithCode(conn, websocket.CloseNormalClosure, "invalid session")
			if resumable {
				return sawReady, dispositionResume, errors.New("session invalidated, resumable")
			}
			return sawReady, dispositionInvalidate, errors.New("session invalidated")
		}
	}
}

// handleDispatch records session identity from READY and forwards the
// frame to the sink in arrival order.
func (g *Gateway) handleDispatch(e *structs.RawEvent) {
	switch e.T {
	case structs.EventNameReady:
		ready := structs.ReadyEvent{}
		if err := json.Unmarshal(e.D, &ready); err != nil {
			g.log.Error().Err(err).Msg("failed to decode READY")
			return
		}
		g.stateMu.Lock()
		g.sessionID = ready.SessionID
		g.resumeGatewayURL = ready.ResumeGatewayURL
		g.status = StatusReady
		g.stateMu.Unlock()
		g.log.Info().Str("session_id", ready.SessionID).Msg("gateway is ready")
	case structs.EventNameResumed:
		g.setStatus(StatusReady)
		g.log.Info().Uint64("sequence", g.sequence.Load()).Msg("session resumed")
	}
	if g.opts.Sink != nil {
		g.opts.Sink.ProcessRaw(g.opts.ShardID, e)
	}
}

// frameSource abstracts plain and zlib-stream transport. For the
// compressed path a feeder goroutine pumps raw messages into the
// shared inflater; frames come out of the json stream on the other
// side.
func (g *Gateway) frameSource(conn *websocket.Conn) (next func() (*structs.RawEvent, error), stop func()) {
	if !g.opts.Compress {
		return func() (*structs.RawEvent, error) {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return nil, err
			}
			e := &structs.RawEvent{}
			if err := json.Unmarshal(msg, e); err != nil {
				return nil, err
			}
			return e, nil
		}, func() {}
	}
	pr, pw := io.Pipe()
	sr := newStreamReader(pr)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := pw.Write(msg); err != nil {
				return
			}
		}
	}()
	return sr.Next, func() {
		pr.Close()
		sr.Close()
	}
}

func (g *Gateway) classifyClose(err error) (disposition, error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case CloseAuthenticationFailed:
			return dispositionFatal, ErrInvalidToken
		case CloseInvalidShard:
			return dispositionFatal, ErrInvalidShard
		case CloseShardingRequired:
			return dispositionFatal, ErrShardingRequired
		case CloseInvalidAPIVersion:
			return dispositionFatal, ErrInvalidAPIVersion
		case CloseInvalidIntents:
			return dispositionFatal, ErrInvalidIntents
		case CloseDisallowedIntents:
			return dispositionFatal, ErrDisallowedIntents
		case CloseInvalidSeq, CloseSessionTimedOut:
			return dispositionInvalidate, err
		}
	}
	// Any other close or transport error keeps the session if it can.
	return dispositionResume, err
}

func (g *Gateway) sendIdentify(conn *websocket.Conn) error {
	d := structs.IdentifyEvent{
		Token:   g.opts.BotToken,
		Intents: g.opts.Intents,
		Properties: structs.IdentifyEventProperties{
			Os:      runtime.GOOS,
			Browser: "pincer",
			Device:  "pincer",
		},
		Presence: g.opts.Presence,
	}
	if g.opts.ShardCount > 0 {
		d.Shard = []uint{g.opts.ShardID, g.opts.ShardCount}
	}
	g.log.Info().Msg("sending identify")
	return g.sendEvent(conn, structs.Event{Op: OpcodeIdentify, D: d})
}

func (g *Gateway) sendResume(conn *websocket.Conn) error {
	g.stateMu.RLock()
	sessionID := g.sessionID
	g.stateMu.RUnlock()
	g.log.Info().Str("session_id", sessionID).Uint64("sequence", g.sequence.Load()).Msg("sending resume")
	return g.sendEvent(conn, structs.Event{
		Op: OpcodeResume,
		D: structs.ResumeEvent{
			Token:     g.opts.BotToken,
			SessionID: sessionID,
			Seq:       g.sequence.Load(),
		},
	})
}

func (g *Gateway) heartbeating(ctx context.Context, conn *websocket.Conn, interval time.Duration, immediate <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-immediate:
			g.sendHeartbeat(conn)
			ticker.Reset(interval)
		case <-ticker.C:
			if !g.lastAck.Load() {
				// Zombie connection: last heartbeat was never acked.
				g.log.Warn().Msg("heartbeat ack missing, forcing reconnect")
				g.closeWithCode(conn, CloseUnknownError, "heartbeat ack timeout")
				conn.Close()
				return
			}
			g.lastAck.Store(false)
			g.sendHeartbeat(conn)
		}
	}
}

func (g *Gateway) sendHeartbeat(conn *websocket.Conn) {
	var d interface{}
	if g.hasSequence.Load() {
		d = g.sequence.Load()
	}
	if err := g.sendEvent(conn, structs.Event{Op: OpcodeHeartbeat, D: d}); err != nil {
		g.log.Error().Err(err).Msg("failed to send heartbeat")
	}
}

func (g *Gateway) sendEvent(conn *websocket.Conn, e structs.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (g *Gateway) closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	g.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
	g.writeMu.Unlock()
}

// Close performs a graceful shutdown of the active connection. The
// run loop exits through its context; Close just hurries the socket.
func (g *Gateway) Close() {
	g.stateMu.RLock()
	conn := g.wsConn
	g.stateMu.RUnlock()
	if conn != nil {
		g.closeWithCode(conn, websocket.CloseNormalClosure, "shutting down")
		conn.Close()
	}
}
