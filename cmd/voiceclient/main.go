// Command voiceclient sends a WAV file or a typed question to a running
// voice agent and prints the result.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

type voiceRequest struct {
	AudioData string `json:"audio_data"`
}

type textRequest struct {
	Text string `json:"text"`
}

func main() {
	audioFile := flag.String("audio", "", "Path to WAV file (16kHz 16-bit mono)")
	text := flag.String("text", "", "Typed question, skips transcription")
	serverAddr := flag.String("server", "http://localhost:8000", "Voice agent base URL")
	flag.Parse()

	if *audioFile == "" && *text == "" {
		log.Fatal("one of -audio or -text is required")
	}

	client := &http.Client{Timeout: 3 * time.Minute}

	var (
		endpoint string
		payload  []byte
	)
	if *text != "" {
		endpoint = *serverAddr + "/process-text"
		payload = mustMarshal(textRequest{Text: *text})
		log.Printf("Sending question: %q", *text)
	} else {
		data := readWAV(*audioFile)
		endpoint = *serverAddr + "/process-voice"
		payload = mustMarshal(voiceRequest{AudioData: base64.StdEncoding.EncodeToString(data)})
		log.Printf("Sending %d bytes of audio", len(data))
	}

	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server returned %d: %s", resp.StatusCode, body)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("Failed to encode request: %v", err)
	}
	return b
}

// readWAV validates the file header and returns the full file contents,
// header included. The server re-wraps PCM as needed.
func readWAV(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 16000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 16000 Hz", sampleRate)
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		log.Fatalf("Failed to read audio: %v", err)
	}
	return append(header, rest...)
}
