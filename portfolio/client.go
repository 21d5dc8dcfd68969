// Package portfolio is a read-only client for the portfolio/points query
// API. Responses are opaque JSON reshaped for display; nothing here has side
// effects on chain state.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Balance is one token position of a wallet.
type Balance struct {
	Symbol   string `json:"symbol"`
	Amount   string `json:"amount"`
	ValueUSD string `json:"value_usd,omitempty"`
}

// Transaction is one historical call of a wallet, newest first.
type Transaction struct {
	Hash      string `json:"hash"`
	Method    string `json:"method,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Position is one protocol position (LP, staking) of a wallet.
type Position struct {
	Protocol string `json:"protocol"`
	Kind     string `json:"kind,omitempty"`
	ValueUSD string `json:"value_usd,omitempty"`
}

// WalletSummary aggregates a wallet's standing, including points.
type WalletSummary struct {
	Address       string `json:"address"`
	TotalValueUSD string `json:"total_value_usd,omitempty"`
	Points        int64  `json:"points,omitempty"`
	Rank          int64  `json:"rank,omitempty"`
}

func (c *Client) Balances(ctx context.Context, address string) ([]Balance, error) {
	var out []Balance
	if err := c.get(ctx, "/balances/"+url.PathEscape(address), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Transactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	path := "/calls/" + url.PathEscape(address)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out []Transaction
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Positions(ctx context.Context, address string) ([]Position, error) {
	var out []Position
	if err := c.get(ctx, "/positions/"+url.PathEscape(address), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WalletSummary(ctx context.Context, address string) (WalletSummary, error) {
	var out WalletSummary
	if err := c.get(ctx, "/wallet-summary/"+url.PathEscape(address), &out); err != nil {
		return WalletSummary{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("portfolio: fetch %s: %w", path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("portfolio http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("portfolio: decode %s: %w", path, err)
	}
	return nil
}
