package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client classifies a user message into a tool call. A wallet address gives
// the model context for defaults like "my balance".
type Client interface {
	Classify(ctx context.Context, message, walletAddress string) (ToolCall, error)
}

// HTTPClient calls an external classifier service that wraps the model. The
// service answers either with the tool-call JSON directly or with raw model
// text in a "text" field; both go through Parse.
type HTTPClient struct {
	http     *http.Client
	endpoint string
}

func NewHTTPClient(httpClient *http.Client, endpoint string) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPClient{http: httpClient, endpoint: strings.TrimRight(endpoint, "/")}
}

type classifyRequest struct {
	Message       string `json:"message"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

type classifyResponse struct {
	Text string `json:"text,omitempty"`
}

func (c *HTTPClient) Classify(ctx context.Context, message, walletAddress string) (ToolCall, error) {
	body, _ := json.Marshal(classifyRequest{Message: message, WalletAddress: walletAddress})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ToolCall{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ToolCall{}, fmt.Errorf("classifier: request failed: %w", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ToolCall{}, fmt.Errorf("classifier http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var wrapped classifyResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Text != "" {
		return Parse(wrapped.Text)
	}
	return Parse(string(raw))
}
