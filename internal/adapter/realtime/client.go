package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vivavoce/backend/internal/settings"
)

const defaultBaseURL = "https://api.openai.com"

// SessionCreationError carries the collaborator's status and body when
// session creation is rejected.
type SessionCreationError struct {
	Status int
	Body   string
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("session creation failed: status %d: %s", e.Status, e.Body)
}

// SessionConfig is the caller-facing session request. Instructions are the
// fully resolved (possibly context-augmented) agent instructions.
type SessionConfig struct {
	Model        string
	Voice        string
	Instructions string
}

// ClientSecret is the ephemeral, single-use credential authorizing one
// transport handshake. It must never be logged or persisted.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

type Session struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Voice        string       `json:"voice"`
	ClientSecret ClientSecret `json:"client_secret"`
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Client talks to the conversational collaborator's session-creation endpoint.
// The API key is resolved from runtime settings per call.
type Client struct {
	settingsSvc SettingsService
	client      *http.Client
	baseURL     string
}

func NewClient(svc SettingsService) *Client {
	return &Client{
		settingsSvc: svc,
		client:      &http.Client{Timeout: 15 * time.Second},
		baseURL:     defaultBaseURL,
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// CreateSession submits the session configuration and returns the session id
// plus its short-lived client secret. Fixed audio, transcription and
// turn-detection parameters are applied here; callers only choose model,
// voice and instructions.
func (c *Client) CreateSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	s, err := c.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if s.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}

	reqBody := map[string]interface{}{
		"model":               cfg.Model,
		"voice":               cfg.Voice,
		"instructions":        cfg.Instructions,
		"modalities":          []string{"audio", "text"},
		"input_audio_format":  "pcm16",
		"output_audio_format": "pcm16",
		"input_audio_transcription": map[string]interface{}{
			"model": "whisper-1",
		},
		"turn_detection": map[string]interface{}{
			"type":                "server_vad",
			"threshold":           0.5,
			"prefix_padding_ms":   300,
			"silence_duration_ms": 500,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/v1/realtime/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.OpenAIAPIKey)
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &SessionCreationError{Status: resp.StatusCode, Body: string(body)}
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.ClientSecret.Value == "" {
		return nil, fmt.Errorf("session response missing client secret")
	}

	return &session, nil
}
