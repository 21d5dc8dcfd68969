package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/degenRobot/rise-tg-bot/intents"
	"github.com/degenRobot/rise-tg-bot/relay"
)

// defaultSlippagePercent applies when a swap request does not name its own
// tolerance.
const defaultSlippagePercent = 1.0

// Executor is satisfied by relay.Executor.
type Executor interface {
	Execute(ctx context.Context, walletAddress string, calls []intents.Call) relay.ExecutionResult
}

// MintTool mints the faucet-style token once for the caller's wallet.
type MintTool struct {
	Registry *intents.Registry
	Exec     Executor
	URLs     Links
}

func (t *MintTool) Name() string { return "mint" }

func (t *MintTool) Description() string {
	return "Mint the named token to the user's wallet. Params: token (symbol)."
}

func (t *MintTool) RequiresVerification() bool { return true }

func (t *MintTool) Execute(ctx context.Context, req Request) (string, error) {
	token := stringParam(req.Params, "token")
	intent, err := intents.BuildMint(t.Registry, token)
	if err != nil {
		return "", err
	}
	res := t.Exec.Execute(ctx, req.WalletAddress, intent.Calls)
	return renderResult(fmt.Sprintf("Minted %s", strings.ToUpper(token)), res, t.URLs), nil
}

// TransferTool sends native currency or an ERC-20 to a recipient.
type TransferTool struct {
	Registry *intents.Registry
	Exec     Executor
	URLs     Links
}

func (t *TransferTool) Name() string { return "transfer" }

func (t *TransferTool) Description() string {
	return "Transfer tokens to an address. Params: token, recipient, amount."
}

func (t *TransferTool) RequiresVerification() bool { return true }

func (t *TransferTool) Execute(ctx context.Context, req Request) (string, error) {
	token := stringParam(req.Params, "token")
	recipient := stringParam(req.Params, "recipient")
	amount := stringParam(req.Params, "amount")

	intent, err := intents.BuildTransfer(t.Registry, token, recipient, amount)
	if err != nil {
		return "", err
	}
	res := t.Exec.Execute(ctx, req.WalletAddress, intent.Calls)
	action := fmt.Sprintf("Sent %s %s to %s", amount, strings.ToUpper(token), shortAddress(recipient))
	return renderResult(action, res, t.URLs), nil
}

// SwapTool swaps between two ERC-20 tokens through the router contract.
type SwapTool struct {
	Registry      *intents.Registry
	Reader        intents.ChainReader
	RouterAddress string
	Exec          Executor
	URLs          Links
}

func (t *SwapTool) Name() string { return "swap" }

func (t *SwapTool) Description() string {
	return "Swap one token for another. Params: from_token, to_token, amount, optional slippage (percent)."
}

func (t *SwapTool) RequiresVerification() bool { return true }

func (t *SwapTool) Execute(ctx context.Context, req Request) (string, error) {
	params := intents.SwapParams{
		FromToken:       stringParam(req.Params, "from_token"),
		ToToken:         stringParam(req.Params, "to_token"),
		Amount:          stringParam(req.Params, "amount"),
		SlippagePercent: floatParam(req.Params, "slippage", defaultSlippagePercent),
		Recipient:       req.WalletAddress,
	}
	intent, err := intents.BuildSwap(ctx, t.Reader, t.Registry, t.RouterAddress, params)
	if err != nil {
		return "", err
	}
	res := t.Exec.Execute(ctx, req.WalletAddress, intent.Calls)
	action := fmt.Sprintf("Swapped %s %s for %s",
		params.Amount, strings.ToUpper(params.FromToken), strings.ToUpper(params.ToToken))
	return renderResult(action, res, t.URLs), nil
}

// renderResult maps an execution outcome to exactly one user-facing reply.
// Each error kind gets its own fixed sentence; delegation-related kinds also
// carry the grant link so the user can fix the session themselves.
func renderResult(action string, res relay.ExecutionResult, urls Links) string {
	if res.Success {
		reply := action + "."
		if len(res.TxHashes) > 0 {
			hash := res.TxHashes[0]
			reply += fmt.Sprintf("\nTransaction: %s\n%s/tx/%s", shortHash(hash), urls.ExplorerURL, hash)
		}
		return reply
	}

	switch res.ErrorKind {
	case relay.ErrKindExpiredSession:
		return fmt.Sprintf("Your session key has expired. Grant a new one here: %s", urls.GrantURL)
	case relay.ErrKindNoPermission:
		return fmt.Sprintf("You haven't granted the bot a session key yet. Grant one here: %s", urls.GrantURL)
	case relay.ErrKindUnauthorized:
		return fmt.Sprintf("The relay rejected the session authorization. Re-grant your session here: %s", urls.GrantURL)
	case relay.ErrKindNetwork:
		return "A network error occurred while talking to the chain. Please try again in a moment."
	default:
		return "The transaction could not be executed. Please try again later."
	}
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12] + "..."
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return strings.TrimSpace(v)
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}
