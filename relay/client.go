package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPC is the slice of the JSON-RPC client the relay methods need.
// *rpc.Client satisfies it.
type RPC interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Client wraps the relay's two custom JSON-RPC methods.
type Client struct {
	rpc RPC
}

func NewClient(rpc RPC) *Client {
	return &Client{rpc: rpc}
}

// Dial connects to the relay endpoint over HTTP or WebSocket.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", endpoint, err)
	}
	return NewClient(c), nil
}

func (c *Client) prepareCalls(ctx context.Context, req prepareCallsRequest) (prepareCallsResponse, error) {
	var resp prepareCallsResponse
	if err := c.rpc.CallContext(ctx, &resp, "wallet_prepareCalls", req); err != nil {
		return prepareCallsResponse{}, fmt.Errorf("wallet_prepareCalls: %w", err)
	}
	if err := resp.validate(); err != nil {
		return prepareCallsResponse{}, err
	}
	return resp, nil
}

func (c *Client) sendPreparedCalls(ctx context.Context, req sendPreparedCallsRequest) (sendEntry, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "wallet_sendPreparedCalls", req); err != nil {
		return sendEntry{}, fmt.Errorf("wallet_sendPreparedCalls: %w", err)
	}
	return decodeSendResponse(raw)
}
