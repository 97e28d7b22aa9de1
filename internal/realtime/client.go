// Package realtime speaks the ElevenLabs-style realtime websocket protocol:
// streaming speech-to-text sessions and stream-input text-to-speech.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseURL     = "wss://api.elevenlabs.io"
	defaultSTTModel    = "scribe_v1"
	defaultTTSModel    = "eleven_multilingual_v2"
	defaultSampleRate  = 16000
	defaultDialTimeout = 3 * time.Second
)

// Config controls endpoints and credentials for both directions.
type Config struct {
	BaseURL     string
	APIKey      string
	STTModel    string
	TTSModel    string
	VoiceID     string
	SampleRate  int
	DialTimeout time.Duration
	// DebugSink receives every server message as one JSON line.
	DebugSink io.Writer
}

// Client dials realtime sessions. It holds no connection of its own.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
}

// New fills config defaults.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.STTModel) == "" {
		cfg.STTModel = defaultSTTModel
	}
	if strings.TrimSpace(cfg.TTSModel) == "" {
		cfg.TTSModel = defaultTTSModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// SampleRate is the PCM rate used for audio in both directions.
func (c *Client) SampleRate() int {
	return c.cfg.SampleRate
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	headers := http.Header{}
	if c.cfg.APIKey != "" {
		headers.Set("xi-api-key", c.cfg.APIKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, target, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// ErrUnauthorized reports a rejected API key.
var ErrUnauthorized = errors.New("realtime api rejected credentials")

// languageCode maps a BCP 47 locale such as ko-KR to its language subtag.
func languageCode(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}
