// Package google provides a Google Cloud Speech-to-Text streaming adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/service/stt"
)

// Config holds the recognition settings sent with the streaming config.
type Config struct {
	Model          string
	LanguageCode   string
	SampleRateHz   int32
	Channels       int32
	InterimResults bool
	AudioEncoding  string
	Punctuate      bool
	Diarize        bool
	// UtteranceSilence is the pause after which Google reports the end of
	// speech activity. Zero leaves the provider default.
	UtteranceSilence time.Duration
}

// knownModels are the recognition models the v1 API accepts.
var knownModels = map[string]bool{
	"default":              true,
	"latest_long":          true,
	"latest_short":         true,
	"command_and_search":   true,
	"phone_call":           true,
	"video":                true,
	"medical_conversation": true,
	"medical_dictation":    true,
}

// DefaultConfig returns the settings used when a session leaves them unset.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		Channels:       1,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		Punctuate:      true,
	}
}

// ConfigFromSession maps session options onto recognition settings.
func ConfigFromSession(cfg models.SessionConfig) Config {
	out := DefaultConfig()
	// Session models may name another provider's model; Google rejects those.
	if knownModels[cfg.Model] {
		out.Model = cfg.Model
	}
	if cfg.UtteranceSilenceMs > 0 {
		out.UtteranceSilence = time.Duration(cfg.UtteranceSilenceMs) * time.Millisecond
	}
	if cfg.Language != "" {
		out.LanguageCode = cfg.Language
	}
	if cfg.SampleRate > 0 {
		out.SampleRateHz = int32(cfg.SampleRate)
	}
	if cfg.Channels > 0 {
		out.Channels = int32(cfg.Channels)
	}
	if cfg.Encoding != "" {
		out.AudioEncoding = cfg.Encoding
	}
	if cfg.InterimResultsEnabled != nil {
		out.InterimResults = *cfg.InterimResultsEnabled
	}
	if cfg.Punctuate != nil {
		out.Punctuate = *cfg.Punctuate
	}
	out.Diarize = models.Enabled(cfg.Diarize)
	return out
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	log    zerolog.Logger

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	done   chan struct{}
}

// New creates a Google STT adapter. Credentials come from opts or, when
// none are given, GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Adapter, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	return &Adapter{
		client: c,
		cfg:    cfg,
		log:    logging.WithComponent("stt.google"),
	}, nil
}

// Start opens a streaming recognition session, sends the config and starts
// receiving results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	if err := stream.Send(streamingConfig(a.cfg)); err != nil {
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return errors.New("google stt: stream not started")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream, waits for the remaining results and closes
// the client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream, done := a.stream, a.done
	a.stream = nil
	a.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
		<-done
	}
	if cerr := a.client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	defer close(a.done)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			a.log.Error().Err(err).Msg("Streaming recognize failed")
			cb.OnError(err)
			return
		}
		if err := handleResponse(resp, cb); err != nil {
			a.log.Error().Err(err).Msg("Provider reported error")
			cb.OnError(err)
			return
		}
	}
}

// handleResponse forwards one streaming response to cb. A response carrying
// a provider error status is returned as an error.
func handleResponse(resp *speechpb.StreamingRecognizeResponse, cb stt.Callback) error {
	if st := resp.GetError(); st != nil && st.GetCode() != 0 {
		return fmt.Errorf("google stt: code %d: %s", st.GetCode(), st.GetMessage())
	}

	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]
		cb.OnTranscript(stt.Result{
			Text:       alt.GetTranscript(),
			IsFinal:    r.GetIsFinal(),
			Confidence: float64(alt.GetConfidence()),
			Speaker:    speakerLabel(alt),
		})
	}

	switch resp.GetSpeechEventType() {
	case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END,
		speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE:
		cb.OnEndOfUtterance()
	}
	return nil
}

// speakerLabel uses the tag of the last diarized word.
func speakerLabel(alt *speechpb.SpeechRecognitionAlternative) string {
	words := alt.GetWords()
	if len(words) == 0 {
		return ""
	}
	if tag := words[len(words)-1].GetSpeakerTag(); tag > 0 {
		return fmt.Sprintf("speaker_%d", tag)
	}
	return ""
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognizeRequest {
	rc := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
		SampleRateHertz:            cfg.SampleRateHz,
		AudioChannelCount:          cfg.Channels,
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: cfg.Punctuate,
	}
	if cfg.Diarize {
		rc.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
		}
	}
	sc := &speechpb.StreamingRecognitionConfig{
		Config:                    rc,
		InterimResults:            cfg.InterimResults,
		EnableVoiceActivityEvents: true,
	}
	if cfg.UtteranceSilence > 0 {
		sc.VoiceActivityTimeout = &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{
			SpeechEndTimeout: durationpb.New(cfg.UtteranceSilence),
		}
	}
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: sc,
		},
	}
}

func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
