package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	TryTrigger    bool           `json:"try_trigger_generation,omitempty"`
}

type audioMessage struct {
	Audio       string `json:"audio"`
	IsFinal     bool   `json:"isFinal"`
	Final       bool   `json:"is_final"`
	Error       string `json:"error"`
	MessageType string `json:"message_type"`
}

// Synthesize streams text through a stream-input session and returns the
// raw s16le PCM at the configured sample rate. Cancelling ctx aborts the
// session.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if strings.TrimSpace(c.cfg.VoiceID) == "" {
		return nil, errors.New("tts voice_id is required")
	}

	query := url.Values{}
	query.Set("model_id", c.cfg.TTSModel)
	query.Set("output_format", "pcm_"+strconv.Itoa(c.cfg.SampleRate))
	target, err := c.endpoint("/v1/text-to-speech/"+url.PathEscape(c.cfg.VoiceID)+"/stream-input", query)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	messages := []textMessage{
		{Text: " ", VoiceSettings: &voiceSettings{Stability: 0.42, SimilarityBoost: 0.85, Speed: 1.0}},
		{Text: text + " ", TryTrigger: true},
		{Text: ""},
	}
	for _, msg := range messages {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, ctxOr(ctx, fmt.Errorf("send tts text: %w", err))
		}
	}

	var pcm []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(pcm) > 0 {
				return pcm, nil
			}
			return nil, ctxOr(ctx, fmt.Errorf("read tts stream: %w", err))
		}
		if c.cfg.DebugSink != nil {
			_, _ = c.cfg.DebugSink.Write(append(data, '\n'))
		}

		var msg audioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("tts %s: %s", msg.MessageType, msg.Error)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("decode tts audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if msg.IsFinal || msg.Final {
			return pcm, nil
		}
	}
}

func ctxOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
