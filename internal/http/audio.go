package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"acta-transcript-engine/internal/service/audio"
)

const (
	maxAudioFrameBytes = 1 << 20
	audioWriteWait     = 5 * time.Second
)

var audioUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// controlMessage is a text frame on the audio socket. {"type":"end"} ends
// the stream; the server answers with the stream stats and closes.
type controlMessage struct {
	Type string `json:"type"`
}

type streamStats struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	AudioBytes int64  `json:"audioBytes"`
	Frames     int    `json:"frames"`
	Finals     int    `json:"finals"`
	Utterances int    `json:"utterances"`
	DurationMs int64  `json:"durationMs"`
}

// streamAudio upgrades to a WebSocket and feeds binary frames to the
// configured STT adapter. Provider callbacks dispatch into the session.
func (h *handlers) streamAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.app.Controller.Snapshot(id); err != nil {
		writeEngineError(w, err)
		return
	}

	conn, err := audioUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("sessionId", id).Msg("Audio WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The provider stream outlives the upgrade request's context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := h.app.OpenStream(ctx, id)
	if err == nil {
		err = stream.Start(ctx)
	}
	if err != nil {
		h.log.Error().Err(err).Str("sessionId", id).Msg("Audio stream setup failed")
		closeSocket(conn, websocket.CloseInternalServerErr, "stt unavailable")
		return
	}
	defer stream.Close()

	conn.SetReadLimit(maxAudioFrameBytes)
	code, reason := h.pumpAudio(ctx, conn, stream, id)

	if err := stream.Close(); err != nil {
		h.log.Warn().Err(err).Str("sessionId", id).Msg("Audio stream close failed")
	}
	st := stream.Stats()
	_ = conn.SetWriteDeadline(time.Now().Add(audioWriteWait))
	_ = conn.WriteJSON(streamStats{
		Type:       "stream_stats",
		SessionID:  id,
		AudioBytes: st.AudioBytes,
		Frames:     st.Frames,
		Finals:     st.Finals,
		Utterances: st.Utterances,
		DurationMs: st.Duration.Milliseconds(),
	})
	closeSocket(conn, code, reason)
}

// pumpAudio reads until the client ends the stream, disconnects or trips a
// stream limit, and returns the close frame to send back.
func (h *handlers) pumpAudio(ctx context.Context, conn *websocket.Conn, stream *audio.Handler, id string) (int, string) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("sessionId", id).Msg("Audio WebSocket read error")
			}
			return websocket.CloseNormalClosure, "stream ended"
		}

		switch mt {
		case websocket.BinaryMessage:
			if err := stream.SendAudio(ctx, data); err != nil {
				if errors.Is(err, audio.ErrLimitExceeded) {
					return websocket.ClosePolicyViolation, "stream limit exceeded"
				}
				h.log.Error().Err(err).Str("sessionId", id).Msg("Audio forwarding failed")
				return websocket.CloseInternalServerErr, "audio forwarding failed"
			}
		case websocket.TextMessage:
			var msg controlMessage
			if json.Unmarshal(data, &msg) == nil && msg.Type == "end" {
				return websocket.CloseNormalClosure, "stream ended"
			}
		}
	}
}

func closeSocket(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(audioWriteWait))
}
