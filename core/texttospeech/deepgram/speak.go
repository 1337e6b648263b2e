package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

// Synthesize speaks the whole text over a fresh websocket and collects the
// streamed linear16 audio until Deepgram confirms the flush.
func (c *Client) Synthesize(ctx context.Context, req texttospeech.Request) (*audio.Resource, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	voice := c.voice
	if req.Voice != "" && slices.Contains(GetAvailableVoices(), deepgramVoice(req.Voice)) {
		voice = deepgramVoice(req.Voice)
	}
	span.SetAttributes(attribute.String("request.voice", string(voice)))

	pcm, err := c.speak(ctx, voice, req.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, texttospeech.ErrEmptyAudio
	}

	span.SetAttributes(attribute.Int("response.bytes", len(pcm)))
	return audio.NewResource(pcm, audio.MimeTypePCM, c.encoding), nil
}

func (c *Client) speak(ctx context.Context, voice deepgramVoice, text string) ([]byte, error) {
	conn, err := c.connect(ctx, voice)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// unblock ReadMessage when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		return nil, fmt.Errorf("failed to send text to deepgram through websocket: %w", err)
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		return nil, fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err)
	}

	var pcm []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("websocket read error: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			pcm = append(pcm, msg...)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				if err := conn.WriteJSON(closeMsg); err != nil {
					logger.Debug("failed to send close message to deepgram websocket", "error", err)
				}
				return pcm, nil
			case "Warning", "Error":
				return nil, errors.New("deepgram: " + parsedMsg.Description)
			}
		}
	}
}
