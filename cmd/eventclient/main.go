package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// step is one scripted recognition event, posted as-is.
type step struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
	Status     string  `json:"status,omitempty"`
}

var script = []step{
	{Type: "status", Status: "connected"},
	{Type: "interim", Text: "Welcome", Speaker: "speaker_1"},
	{Type: "interim", Text: "Welcome to the", Speaker: "speaker_1"},
	{Type: "final", Text: "Welcome to the review.", Confidence: 0.95, Speaker: "speaker_1"},
	{Type: "interim", Text: "We need", Speaker: "speaker_2"},
	{Type: "final", Text: "We need to", Confidence: 0.88, Speaker: "speaker_2"},
	{Type: "final", Text: "update the runbook", Confidence: 0.9, Speaker: "speaker_2"},
	{Type: "utterance_end"},
	{Type: "final", Text: "Ana will own that.", Confidence: 0.92, Speaker: "speaker_1"},
	{Type: "final", Text: "Ana will own that.", Confidence: 0.92, Speaker: "speaker_1"},
	{Type: "status", Status: "closed"},
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Transcript engine base URL")
	sessionID := flag.String("session", "review-"+time.Now().Format("150405"), "Session ID")
	delay := flag.Duration("delay", 200*time.Millisecond, "Pause between events")
	insights := flag.Bool("insights", false, "Request insights on close")
	flag.Parse()

	if _, err := call(http.MethodPost, *server+"/v1/sessions", map[string]string{"id": *sessionID}, http.StatusCreated); err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	log.Printf("Session %s opened", *sessionID)

	eventsURL := *server + "/v1/sessions/" + url.PathEscape(*sessionID) + "/events"
	for i, s := range script {
		if _, err := call(http.MethodPost, eventsURL, s, http.StatusAccepted); err != nil {
			log.Fatalf("Event %d (%s) rejected: %v", i, s.Type, err)
		}
		log.Printf("Sent %s %q", s.Type, s.Text)
		time.Sleep(*delay)
	}

	closeURL := *server + "/v1/sessions/" + url.PathEscape(*sessionID)
	if *insights {
		closeURL += "?insights=true"
	}
	out, err := call(http.MethodDelete, closeURL, nil, http.StatusOK)
	if err != nil {
		log.Fatalf("Failed to close session: %v", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		fmt.Println(string(out))
		return
	}
	fmt.Println(pretty.String())
}

func call(method, target string, body any, want int) ([]byte, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, target, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != want {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, out)
	}
	return out, nil
}
