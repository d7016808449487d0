package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jwebster45206/lifequest/internal/handlers"
	"github.com/jwebster45206/lifequest/pkg/chat"
)

var errPlayerNotFound = fmt.Errorf("player not found")

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// getPlayer fetches the snapshot shown in the side panel.
func getPlayer(client *http.Client, baseURL, playerID string) (*handlers.PlayerSnapshot, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/players/%s", baseURL, url.PathEscape(playerID)))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errPlayerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body, "failed to get player")
	}

	var snap handlers.PlayerSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse player response: %w", err)
	}
	return &snap, nil
}

// sendTurn posts a synchronous turn. Refusals come back as a rendered
// Result with a 200, so only transport failures and 5xx are errors.
func sendTurn(client *http.Client, baseURL string, req chat.TurnRequest) (*chat.TurnResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		baseURL+"/v1/turns",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var turnResp chat.TurnResponse
	if err := json.Unmarshal(body, &turnResp); err == nil && turnResp.Result.Text != "" {
		return &turnResp, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body, "turn failed")
	}
	return nil, fmt.Errorf("failed to parse response: %s", string(body))
}

func apiError(status int, body []byte, prefix string) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s: %s", prefix, errorResp.Error)
}
