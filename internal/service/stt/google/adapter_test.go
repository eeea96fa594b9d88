package google

import (
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/genproto/googleapis/rpc/status"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/service/stt"
)

type recordingCallback struct {
	results    []stt.Result
	utterances int
	errs       []error
}

func (c *recordingCallback) OnTranscript(r stt.Result) { c.results = append(c.results, r) }
func (c *recordingCallback) OnEndOfUtterance()         { c.utterances++ }
func (c *recordingCallback) OnError(err error)         { c.errs = append(c.errs, err) }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestConfigFromSession(t *testing.T) {
	cfg := ConfigFromSession(models.SessionConfig{
		Model:                 "latest_long",
		Language:              "es-ES",
		SampleRate:            8000,
		Channels:              2,
		Encoding:              "MULAW",
		InterimResultsEnabled: models.Bool(false),
		Punctuate:             models.Bool(false),
		Diarize:               models.Bool(true),
		UtteranceSilenceMs:    1200,
	})

	if cfg.Model != "latest_long" || cfg.LanguageCode != "es-ES" {
		t.Errorf("unexpected model/language %s/%s", cfg.Model, cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 8000 || cfg.Channels != 2 || cfg.AudioEncoding != "MULAW" {
		t.Errorf("unexpected audio settings %+v", cfg)
	}
	if cfg.InterimResults || cfg.Punctuate || !cfg.Diarize {
		t.Errorf("unexpected flags %+v", cfg)
	}
	if cfg.UtteranceSilence != 1200*time.Millisecond {
		t.Errorf("expected 1.2s utterance silence, got %v", cfg.UtteranceSilence)
	}

	empty := ConfigFromSession(models.SessionConfig{})
	if empty != DefaultConfig() {
		t.Errorf("expected defaults for empty session config, got %+v", empty)
	}
}

func TestConfigFromSession_ForeignModelDropped(t *testing.T) {
	cfg := ConfigFromSession(models.SessionConfig{Model: "nova-2"})
	if cfg.Model != "" {
		t.Errorf("expected unknown model left to the provider default, got %q", cfg.Model)
	}
}

func TestStreamingConfig_VoiceActivity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UtteranceSilence = 1500 * time.Millisecond
	sc := streamingConfig(cfg).GetStreamingConfig()

	if !sc.GetEnableVoiceActivityEvents() {
		t.Error("expected voice activity events enabled")
	}
	if got := sc.GetVoiceActivityTimeout().GetSpeechEndTimeout().AsDuration(); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s speech end timeout, got %v", got)
	}

	if streamingConfig(DefaultConfig()).GetStreamingConfig().GetVoiceActivityTimeout() != nil {
		t.Error("expected no timeout when utterance silence is unset")
	}
}

func TestStreamingConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Diarize = true
	req := streamingConfig(cfg)

	sc := req.GetStreamingConfig()
	if sc == nil {
		t.Fatal("expected streaming config request")
	}
	if !sc.GetInterimResults() {
		t.Error("expected interim results enabled")
	}
	rc := sc.GetConfig()
	if rc.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 || rc.GetSampleRateHertz() != 16000 {
		t.Errorf("unexpected recognition config %v", rc)
	}
	if !rc.GetEnableAutomaticPunctuation() {
		t.Error("expected automatic punctuation")
	}
	if !rc.GetDiarizationConfig().GetEnableSpeakerDiarization() {
		t.Error("expected diarization enabled")
	}
}

func TestHandleResponse_Results(t *testing.T) {
	cb := &recordingCallback{}
	resp := &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hello"}}},
			{Alternatives: nil},
			{
				IsFinal: true,
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{
					Transcript: "hello world.",
					Confidence: 0.5,
					Words: []*speechpb.WordInfo{
						{Word: "hello", SpeakerTag: 1},
						{Word: "world.", SpeakerTag: 2},
					},
				}},
			},
		},
	}

	if err := handleResponse(resp, cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cb.results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(cb.results))
	}
	if cb.results[0].IsFinal || cb.results[0].Text != "hello" {
		t.Errorf("unexpected interim %+v", cb.results[0])
	}
	final := cb.results[1]
	if !final.IsFinal || final.Confidence != 0.5 || final.Speaker != "speaker_2" {
		t.Errorf("unexpected final %+v", final)
	}
	if cb.utterances != 0 {
		t.Errorf("expected no utterance end, got %d", cb.utterances)
	}
}

func TestHandleResponse_EndOfUtterance(t *testing.T) {
	cb := &recordingCallback{}
	resp := &speechpb.StreamingRecognizeResponse{
		SpeechEventType: speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE,
	}

	if err := handleResponse(resp, cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.utterances != 1 {
		t.Errorf("expected 1 utterance end, got %d", cb.utterances)
	}
}

func TestHandleResponse_SpeechActivityEnd(t *testing.T) {
	cb := &recordingCallback{}
	resp := &speechpb.StreamingRecognizeResponse{
		SpeechEventType: speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END,
	}

	if err := handleResponse(resp, cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.utterances != 1 {
		t.Errorf("expected 1 utterance end, got %d", cb.utterances)
	}
}

func TestHandleResponse_ProviderError(t *testing.T) {
	cb := &recordingCallback{}
	resp := &speechpb.StreamingRecognizeResponse{
		Error: &status.Status{Code: 11, Message: "audio timeout"},
	}

	if err := handleResponse(resp, cb); err == nil {
		t.Fatal("expected error for provider error status")
	}
	if len(cb.results) != 0 {
		t.Errorf("expected no results, got %d", len(cb.results))
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"invalid", speechpb.RecognitionConfig_LINEAR16},  // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},         // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
