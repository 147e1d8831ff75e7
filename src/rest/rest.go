package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAPIVersion is the REST and gateway API version spoken.
	DefaultAPIVersion = 9

	defaultMaxTTL  = 3
	defaultTimeout = 20 * time.Second
)

// REST issues requests against the Discord HTTP API. Every call runs
// through the rate limiter, observes the response headers back into
// it, and classifies the status into the error taxonomy.
type REST struct {
	httpClient *http.Client
	botToken   string
	baseURL    string
	limiter    *RateLimiter
	maxTTL     int
	timeout    time.Duration
	log        zerolog.Logger
}

type RESTOptions struct {
	BotToken   string
	BaseURL    string // defaults to https://discord.com/api/v9
	HTTPClient *http.Client
	MaxTTL     int // retry budget for 5xx responses
	Timeout    time.Duration
	Logger     zerolog.Logger
}

func NewREST(opts RESTOptions) *REST {
	base := opts.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://discord.com/api/v%d", DefaultAPIVersion)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	ttl := opts.MaxTTL
	if ttl <= 0 {
		ttl = defaultMaxTTL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &REST{
		httpClient: hc,
		botToken:   opts.BotToken,
		baseURL:    strings.TrimRight(base, "/"),
		limiter:    NewRateLimiter(opts.Logger),
		maxTTL:     ttl,
		timeout:    timeout,
		log:        opts.Logger.With().Str("component", "rest").Logger(),
	}
}

// RateLimiter exposes the limiter so the owner can inspect the global
// gate.
func (r *REST) RateLimiter() *RateLimiter { return r.limiter }

func (r *REST) applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func (r *REST) makeRequest(ctx context.Context, method string, route string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+route, body)
	if err != nil {
		return nil, err
	}
	// Mandatory headers.
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if r.botToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bot %s", r.botToken))
	}
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/Pincer-org/Pincer-sub000, 1.0.0)")
	return req, nil
}

type rateLimitedBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// Request sends one logical call. body is marshalled to JSON when
// non-nil; optional fields must use omitempty so absent values are
// never serialized as null. The returned bytes are the raw response
// body (nil on 204).
func (r *REST) Request(ctx context.Context, method string, route string, body interface{}) ([]byte, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}
	send := func(ctx context.Context) (*http.Response, error) {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := r.makeRequest(ctx, method, route, reader, "application/json")
		if err != nil {
			return nil, err
		}
		return r.httpClient.Do(req)
	}
	return r.do(ctx, method, route, send)
}

// File is one attachment part of a multipart upload.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// RequestMultipart sends payload as the payload_json part with one
// files[n] part per attachment.
func (r *REST) RequestMultipart(ctx context.Context, method string, route string, payload interface{}, files []File) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var parts []File
	for _, f := range files {
		data, err := io.ReadAll(f.Reader)
		if err != nil {
			return nil, err
		}
		parts = append(parts, File{Name: f.Name, ContentType: f.ContentType, Reader: bytes.NewReader(data)})
	}
	send := func(ctx context.Context) (*http.Response, error) {
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		if err := w.WriteField("payload_json", string(encoded)); err != nil {
			return nil, err
		}
		for n, f := range parts {
			if seeker, ok := f.Reader.(io.Seeker); ok {
				seeker.Seek(0, io.SeekStart)
			}
			part, err := w.CreateFormFile(fmt.Sprintf("files[%d]", n), f.Name)
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(part, f.Reader); err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := r.makeRequest(ctx, method, route, buf, w.FormDataContentType())
		if err != nil {
			return nil, err
		}
		return r.httpClient.Do(req)
	}
	return r.do(ctx, method, route, send)
}

func (r *REST) do(ctx context.Context, method string, route string, send func(context.Context) (*http.Response, error)) ([]byte, error) {
	ttl := r.maxTTL
	for {
		if err := r.limiter.Acquire(ctx, method, route); err != nil {
			return nil, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		res, err := send(attemptCtx)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		data, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		cancel()
		if readErr != nil {
			return nil, readErr
		}
		// Headers teach the limiter regardless of status.
		r.limiter.Observe(method, route, res.Header)

		switch {
		case res.StatusCode == http.StatusNoContent:
			return nil, nil
		case res.StatusCode >= 200 && res.StatusCode < 300:
			return data, nil
		case res.StatusCode == http.StatusNotModified:
			return data, ErrNotModified
		case res.StatusCode == http.StatusTooManyRequests:
			var rb rateLimitedBody
			_ = json.Unmarshal(data, &rb)
			retryAfter := time.Duration(rb.RetryAfter * float64(time.Second))
			if rb.Global || res.Header.Get(headerGlobal) == "true" {
				r.limiter.ArmGlobal(retryAfter)
			} else if retryAfter > 0 {
				if err := sleep(ctx, retryAfter); err != nil {
					return nil, err
				}
			}
			r.log.Warn().Str("route", route).Float64("retry_after", rb.RetryAfter).Bool("global", rb.Global).Msg("rate limited")
			// 429 retries never consume the server-error budget.
			continue
		case res.StatusCode >= 500:
			ttl--
			if ttl <= 0 {
				return nil, &APIError{Status: res.StatusCode, Kind: ErrServerError, Body: parseErrorBody(data)}
			}
			backoff := time.Duration(1+2*(r.maxTTL-ttl)) * time.Second
			r.log.Warn().Str("route", route).Int("status", res.StatusCode).Dur("backoff", backoff).Msg("server error, retrying")
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		default:
			kind := classifyStatus(res.StatusCode)
			if kind == nil {
				kind = errors.New(http.StatusText(res.StatusCode))
			}
			return nil, &APIError{Status: res.StatusCode, Kind: kind, Body: parseErrorBody(data)}
		}
	}
}

func parseErrorBody(data []byte) ErrorHTTPResponse {
	var body ErrorHTTPResponse
	_ = json.Unmarshal(data, &body)
	return body
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Verb helpers keep call sites terse.

func (r *REST) Get(ctx context.Context, route string) ([]byte, error) {
	return r.Request(ctx, http.MethodGet, route, nil)
}

func (r *REST) Post(ctx context.Context, route string, body interface{}) ([]byte, error) {
	return r.Request(ctx, http.MethodPost, route, body)
}

func (r *REST) Put(ctx context.Context, route string, body interface{}) ([]byte, error) {
	return r.Request(ctx, http.MethodPut, route, body)
}

func (r *REST) Patch(ctx context.Context, route string, body interface{}) ([]byte, error) {
	return r.Request(ctx, http.MethodPatch, route, body)
}

func (r *REST) Delete(ctx context.Context, route string) ([]byte, error) {
	return r.Request(ctx, http.MethodDelete, route, nil)
}
