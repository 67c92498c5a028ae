package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RealtimeClient broadcasts job progress over Supabase Realtime so clients
// subscribed to job:<id> see state changes without polling.
type RealtimeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	return &RealtimeClient{
		baseURL:    strings.TrimSuffix(supabaseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type broadcastMessage struct {
	Topic   string                 `json:"topic"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"messages": []broadcastMessage{{Topic: channel, Event: event, Payload: payload}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.baseURL+"/realtime/v1/api/broadcast", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to publish event: status %d", resp.StatusCode)
	}
	return nil
}

// PublishJobEvent never fails the caller; job progress is advisory.
func (r *RealtimeClient) PublishJobEvent(jobID uuid.UUID, event string, payload map[string]interface{}) {
	channel := fmt.Sprintf("job:%s", jobID.String())
	if err := r.PublishEvent(channel, event, payload); err != nil {
		log.Printf("Warning: failed to publish %s on %s: %v", event, channel, err)
	}
}

func JobStatusPayload(jobID uuid.UUID, status string, processed, failed int) map[string]interface{} {
	return map[string]interface{}{
		"job_id":          jobID.String(),
		"status":          status,
		"processed_files": processed,
		"failed_files":    failed,
	}
}

func FileStatusPayload(jobID uuid.UUID, filename, status, errMsg string) map[string]interface{} {
	payload := map[string]interface{}{
		"job_id":   jobID.String(),
		"filename": filename,
		"status":   status,
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	return payload
}
