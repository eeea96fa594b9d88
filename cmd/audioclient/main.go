package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

type wavFormat struct {
	channels      int
	sampleRate    int
	bitsPerSample int
}

func main() {
	audioFile := flag.String("audio", "../../testdata/sample-16khz.wav", "Path to WAV file (16-bit PCM)")
	server := flag.String("server", "http://localhost:8080", "Transcript engine base URL")
	sessionID := flag.String("session", "meeting-"+time.Now().Format("150405"), "Session ID")
	chunkMs := flag.Int("chunk-ms", 100, "Audio chunk length in milliseconds")
	keepOpen := flag.Bool("keep-open", false, "Leave the session open after streaming")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	format, err := readWAVHeader(f)
	if err != nil {
		log.Fatalf("Invalid WAV file: %v", err)
	}
	log.Printf("WAV file: channels=%d sampleRate=%d bitsPerSample=%d",
		format.channels, format.sampleRate, format.bitsPerSample)

	if err := openSession(*server, *sessionID, format); err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	log.Printf("Session %s opened", *sessionID)

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/v1/sessions/" + url.PathEscape(*sessionID) + "/audio"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	// Stream audio in chunks to simulate real-time capture.
	chunkSize := format.sampleRate * format.channels * format.bitsPerSample / 8 * *chunkMs / 1000
	chunk := make([]byte, chunkSize)
	interval := time.Duration(*chunkMs) * time.Millisecond
	var (
		totalBytes int64
		chunkNum   int
		startTime  = time.Now()
	)
	for {
		n, err := io.ReadFull(f, chunk)
		if n > 0 {
			chunkNum++
			totalBytes += int64(n)
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
				log.Fatalf("Failed to send chunk %d: %v", chunkNum, err)
			}
			if chunkNum%10 == 0 {
				log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
			}
			time.Sleep(interval)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}
	}
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, time.Since(startTime))

	if err := conn.WriteJSON(map[string]string{"type": "end"}); err != nil {
		log.Fatalf("Failed to end stream: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var stats map[string]any
	if err := conn.ReadJSON(&stats); err != nil {
		log.Printf("No stream stats received: %v", err)
	} else {
		log.Printf("Stream stats: %v", stats)
	}

	if *keepOpen {
		return
	}
	summary, err := closeSession(*server, *sessionID)
	if err != nil {
		log.Fatalf("Failed to close session: %v", err)
	}
	fmt.Println(summary)
}

func readWAVHeader(r io.Reader) (wavFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavFormat{}, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, fmt.Errorf("not a RIFF/WAVE file")
	}
	if audioFormat := binary.LittleEndian.Uint16(header[20:22]); audioFormat != 1 {
		return wavFormat{}, fmt.Errorf("only PCM supported, got format %d", audioFormat)
	}
	format := wavFormat{
		channels:      int(binary.LittleEndian.Uint16(header[22:24])),
		sampleRate:    int(binary.LittleEndian.Uint32(header[24:28])),
		bitsPerSample: int(binary.LittleEndian.Uint16(header[34:36])),
	}
	if format.bitsPerSample != 16 {
		return wavFormat{}, fmt.Errorf("only 16-bit samples supported, got %d", format.bitsPerSample)
	}
	return format, nil
}

func openSession(server, id string, format wavFormat) error {
	body, _ := json.Marshal(map[string]any{
		"id": id,
		"config": map[string]any{
			"sampleRate": format.sampleRate,
			"channels":   format.channels,
			"encoding":   "LINEAR16",
		},
	})
	resp, err := http.Post(server+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func closeSession(server, id string) (string, error) {
	req, err := http.NewRequest(http.MethodDelete, server+"/v1/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, out)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		return string(out), nil
	}
	return pretty.String(), nil
}
