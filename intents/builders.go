// Package intents turns structured tool calls into EVM call bundles. Each
// builder returns the calls to execute plus the contract addresses the
// wallet's session permission must cover.
package intents

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// swapDeadline bounds how long a prepared swap stays executable on chain.
const swapDeadline = 20 * time.Minute

// Intent is a builder's output: the call bundle plus the permission
// predicate, expressed as the contract addresses an active session grant
// must allow. Native value transfers need no call permission, so
// RequiredCallTargets may be empty.
type Intent struct {
	Calls               []Call
	RequiredCallTargets []string
}

// ChainReader is the read-only slice of the RPC client the swap builder
// needs for live pool quotes. *ethclient.Client satisfies it.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BuildMint builds the token's no-argument mint call.
func BuildMint(reg *Registry, tokenSymbol string) (Intent, error) {
	tok, err := reg.mustLookup(tokenSymbol)
	if err != nil {
		return Intent{}, err
	}
	if tok.Native {
		return Intent{}, fmt.Errorf("intents: cannot mint native token %s", tok.Symbol)
	}
	data, err := erc20ABI.Pack("mint")
	if err != nil {
		return Intent{}, fmt.Errorf("intents: pack mint: %w", err)
	}
	return Intent{
		Calls:               []Call{{To: tok.Address, Data: data}},
		RequiredCallTargets: []string{tok.Address},
	}, nil
}

// BuildTransfer builds a native value transfer or an ERC-20 transfer,
// depending on the token. Amount is a human decimal string.
func BuildTransfer(reg *Registry, tokenSymbol, recipient, amount string) (Intent, error) {
	tok, err := reg.mustLookup(tokenSymbol)
	if err != nil {
		return Intent{}, err
	}
	if !common.IsHexAddress(recipient) {
		return Intent{}, fmt.Errorf("intents: invalid recipient address %q", recipient)
	}
	units, err := ToBaseUnits(amount, tok.Decimals)
	if err != nil {
		return Intent{}, err
	}
	if units.Sign() == 0 {
		return Intent{}, fmt.Errorf("intents: transfer amount is zero")
	}

	if tok.Native {
		return Intent{
			Calls: []Call{{To: recipient, Value: units}},
		}, nil
	}

	data, err := erc20ABI.Pack("transfer", common.HexToAddress(recipient), units)
	if err != nil {
		return Intent{}, fmt.Errorf("intents: pack transfer: %w", err)
	}
	return Intent{
		Calls:               []Call{{To: tok.Address, Data: data}},
		RequiredCallTargets: []string{tok.Address},
	}, nil
}

// SwapParams describes a token swap. SlippagePercent is the tolerated drop
// below the quoted output, e.g. 2 means the swap reverts if it would deliver
// less than 98% of the quote.
type SwapParams struct {
	FromToken       string
	ToToken         string
	Amount          string
	SlippagePercent float64
	Recipient       string
}

// BuildSwap builds an approve + swapExactTokensForTokens pair against the
// router. The minimum-output bound comes from a live getAmountsOut quote of
// the pool, never from the input amount: slippage protection computed off
// the input would not protect against a drained or skewed pool at all.
func BuildSwap(ctx context.Context, reader ChainReader, reg *Registry, routerAddress string, p SwapParams) (Intent, error) {
	from, err := reg.mustLookup(p.FromToken)
	if err != nil {
		return Intent{}, err
	}
	to, err := reg.mustLookup(p.ToToken)
	if err != nil {
		return Intent{}, err
	}
	if from.Native || to.Native {
		return Intent{}, fmt.Errorf("intents: swap requires ERC-20 tokens on both sides, got %s -> %s", from.Symbol, to.Symbol)
	}
	if !common.IsHexAddress(routerAddress) {
		return Intent{}, fmt.Errorf("intents: invalid router address %q", routerAddress)
	}
	if !common.IsHexAddress(p.Recipient) {
		return Intent{}, fmt.Errorf("intents: invalid swap recipient %q", p.Recipient)
	}
	if p.SlippagePercent < 0 || p.SlippagePercent >= 100 {
		return Intent{}, fmt.Errorf("intents: slippage %.2f%% out of range", p.SlippagePercent)
	}

	amountIn, err := ToBaseUnits(p.Amount, from.Decimals)
	if err != nil {
		return Intent{}, err
	}
	if amountIn.Sign() == 0 {
		return Intent{}, fmt.Errorf("intents: swap amount is zero")
	}

	path := []common.Address{common.HexToAddress(from.Address), common.HexToAddress(to.Address)}
	quoted, err := quoteAmountOut(ctx, reader, routerAddress, amountIn, path)
	if err != nil {
		return Intent{}, err
	}
	if quoted.Sign() == 0 {
		return Intent{}, fmt.Errorf("intents: no liquidity for %s/%s pair", from.Symbol, to.Symbol)
	}
	amountOutMin := applySlippage(quoted, p.SlippagePercent)

	approveData, err := erc20ABI.Pack("approve", common.HexToAddress(routerAddress), amountIn)
	if err != nil {
		return Intent{}, fmt.Errorf("intents: pack approve: %w", err)
	}
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	swapData, err := routerABI.Pack("swapExactTokensForTokens",
		amountIn, amountOutMin, path, common.HexToAddress(p.Recipient), deadline)
	if err != nil {
		return Intent{}, fmt.Errorf("intents: pack swap: %w", err)
	}

	return Intent{
		Calls: []Call{
			{To: from.Address, Data: approveData},
			{To: routerAddress, Data: swapData},
		},
		RequiredCallTargets: []string{from.Address, routerAddress},
	}, nil
}

func quoteAmountOut(ctx context.Context, reader ChainReader, routerAddress string, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("intents: pack getAmountsOut: %w", err)
	}
	router := common.HexToAddress(routerAddress)
	out, err := reader.CallContract(ctx, ethereum.CallMsg{To: &router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("intents: quote pool: %w", err)
	}
	unpacked, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("intents: decode quote: %w", err)
	}
	amounts, ok := unpacked[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("intents: quote returned no output amount")
	}
	return amounts[len(amounts)-1], nil
}

// applySlippage scales the quoted output down by the slippage tolerance:
// amountOutMin = quote * keepBps / 10000, keepBps = floor((100 - pct) * 100).
// Two-decimal precision on the percentage keeps 0.5% exact.
func applySlippage(quote *big.Int, slippagePercent float64) *big.Int {
	keepBps := big.NewInt(int64(math.Floor((100 - slippagePercent) * 100)))
	out := new(big.Int).Mul(quote, keepBps)
	return out.Div(out, big.NewInt(10000))
}
