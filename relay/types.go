package relay

import (
	"encoding/json"
	"fmt"
)

// Wire shapes for the relay's wallet_prepareCalls / wallet_sendPreparedCalls
// methods. Everything inside `context` is relay-internal state (preCall,
// quote, fee capabilities) that must travel back to the send phase verbatim,
// so it stays json.RawMessage end to end.

type keyDescriptor struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
}

type wireCall struct {
	To    string `json:"to"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"`
}

type prepareCallsRequest struct {
	From         string          `json:"from"`
	ChainID      string          `json:"chainId"`
	Calls        []wireCall      `json:"calls"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
	Key          keyDescriptor   `json:"key"`
}

// permissionCapability binds the prepare request to an on-chain grant by id.
type permissionCapability struct {
	Permissions struct {
		ID string `json:"id"`
	} `json:"permissions"`
}

type prepareCallsResponse struct {
	Digest  string          `json:"digest"`
	Context json.RawMessage `json:"context"`
	Key     json.RawMessage `json:"key,omitempty"`
}

func (r prepareCallsResponse) validate() error {
	if r.Digest == "" {
		return fmt.Errorf("relay: prepare response missing digest")
	}
	if len(r.Context) == 0 {
		return fmt.Errorf("relay: prepare response missing context")
	}
	return nil
}

type wireSignature struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
	Value     string `json:"value"`
}

type sendPreparedCallsRequest struct {
	Context   json.RawMessage `json:"context"`
	Signature wireSignature   `json:"signature"`
}

// sendEntry is one element of the send response. The relay has answered with
// both a bare object and a one-element array across versions, so decoding
// accepts either.
type sendEntry struct {
	ID                string   `json:"id"`
	TransactionHash   string   `json:"transactionHash,omitempty"`
	TransactionHashes []string `json:"transactionHashes,omitempty"`
}

func decodeSendResponse(raw json.RawMessage) (sendEntry, error) {
	var single sendEntry
	if err := json.Unmarshal(raw, &single); err == nil && single.ID != "" {
		return single, nil
	}
	var many []sendEntry
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0].ID != "" {
		return many[0], nil
	}
	return sendEntry{}, fmt.Errorf("relay: send response has no bundle id: %s", string(raw))
}

func (e sendEntry) hashes() []string {
	if len(e.TransactionHashes) > 0 {
		return e.TransactionHashes
	}
	if e.TransactionHash != "" {
		return []string{e.TransactionHash}
	}
	return nil
}
