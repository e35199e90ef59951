package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
)

// APIClient calls the hunt API as one player.
type APIClient struct {
	baseURL string
	userID  string
	teamID  string
	http    *http.Client
}

func NewAPIClient(baseURL, userID, teamID string, client *http.Client) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		teamID:  teamID,
		http:    client,
	}
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Body       chat.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.DisplayMessage != "" {
		return e.Body.DisplayMessage
	}
	if e.Body.Error != "" {
		return e.Body.Error
	}
	return fmt.Sprintf("API returned status %d", e.StatusCode)
}

func (c *APIClient) testConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("user-id", c.userID)
	req.Header.Set("team-id", c.teamID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, &apiErr.Body)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Level refreshes the current level, or scans levelID when it is set.
func (c *APIClient) Level(ctx context.Context, levelID string) (*chat.LevelResponse, error) {
	var body any
	if levelID != "" {
		body = chat.LevelRequest{LevelID: levelID}
	}
	var out chat.LevelResponse
	if err := c.post(ctx, "/level", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Message(ctx context.Context, text string) (*chat.MessageResponse, error) {
	var out chat.MessageResponse
	if err := c.post(ctx, "/message", chat.MessageRequest{Message: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) ClearChat(ctx context.Context) (*chat.MessageResponse, error) {
	var out chat.MessageResponse
	if err := c.post(ctx, "/clear-chat", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) PingCoordinates(ctx context.Context, lat, lng float64) error {
	return c.post(ctx, "/ping-coordinates", chat.CoordinatesRequest{Latitude: &lat, Longitude: &lng}, nil)
}

// linkOrEmpty reads an optional map link; the API sends null until the map hint is due.
func linkOrEmpty(link *string) string {
	if link == nil {
		return ""
	}
	return *link
}

// SSEEvent is one event from the team stream.
type SSEEvent struct {
	Type string
	Data map[string]any
}

// listenToSSE streams the team's events into eventChan until ctx ends or the stream closes.
func (c *APIClient) listenToSSE(ctx context.Context, eventChan chan<- SSEEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/events/teams/%s", c.baseURL, c.teamID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("user-id", c.userID)
	req.Header.Set("team-id", c.teamID)

	// the stream outlives the request timeout of the shared client
	streamClient := &http.Client{Transport: c.http.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	return readSSE(ctx, resp.Body, eventChan)
}

func readSSE(ctx context.Context, r io.Reader, eventChan chan<- SSEEvent) error {
	scanner := bufio.NewScanner(r)
	var current SSEEvent

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Type != "" {
				select {
				case eventChan <- current:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			current = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				current.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
