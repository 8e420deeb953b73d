// Package speech synthesizes reply audio through the ElevenLabs API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "Xb7hH8MSUJpSbSDYk0k2"
	DefaultModelID = "eleven_multilingual_v2"
)

type ElevenLabs struct {
	BaseURL string
	APIKey  string
	ModelID string
	Client  *http.Client
}

type ttsReq struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func NewElevenLabs(baseURL, apiKey, modelID string) *ElevenLabs {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &ElevenLabs{
		BaseURL: baseURL,
		APIKey:  apiKey,
		ModelID: modelID,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Synthesize returns the MPEG audio for text spoken by voiceID.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if e.Client == nil {
		return nil, errors.New("elevenlabs: http client is nil")
	}
	if strings.TrimSpace(e.APIKey) == "" {
		return nil, errors.New("elevenlabs: api key is required")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	b, err := json.Marshal(ttsReq{Text: text, ModelID: e.ModelID})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", strings.TrimRight(e.BaseURL, "/"), voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("elevenlabs: %s", msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: empty audio")
	}
	return audio, nil
}

// Voices maps persona keys to voice ids.
type Voices struct {
	Default   string
	ByPersona map[string]string
}

// VoiceFor returns the persona's voice, or the default voice when the persona
// has no override.
func (v Voices) VoiceFor(persona string) string {
	if id := v.ByPersona[persona]; id != "" {
		return id
	}
	if v.Default != "" {
		return v.Default
	}
	return DefaultVoiceID
}
