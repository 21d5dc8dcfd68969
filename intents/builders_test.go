package intents

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
)

const (
	addrUSDC   = "0x2222222222222222222222222222222222222222"
	addrRISE   = "0x3333333333333333333333333333333333333333"
	addrRouter = "0x4444444444444444444444444444444444444444"
	addrUser   = "0x5555555555555555555555555555555555555555"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Token{
		{Symbol: "ETH", Decimals: 18, Native: true},
		{Symbol: "USDC", Address: addrUSDC, Decimals: 6},
		{Symbol: "RISE", Address: addrRISE, Decimals: 18},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

// quoteReader answers every getAmountsOut call with a fixed final amount.
type quoteReader struct {
	out *big.Int
}

func (r *quoteReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method := routerABI.Methods["getAmountsOut"]
	return method.Outputs.Pack([]*big.Int{big.NewInt(1), r.out})
}

func TestToBaseUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"1.5", 6, "1500000", false},
		{"0.000001", 6, "1", false},
		{".5", 2, "50", false},
		{"0.0000001", 6, "", true},
		{"-1", 18, "", true},
		{"abc", 18, "", true},
		{"", 18, "", true},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.amount, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ToBaseUnits(%q, %d) expected error", tc.amount, tc.decimals)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d) error = %v", tc.amount, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ToBaseUnits(%q, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestApplySlippage(t *testing.T) {
	t.Parallel()

	quote, _ := new(big.Int).SetString("1000000000000000000", 10)

	got := applySlippage(quote, 2)
	if got.String() != "980000000000000000" {
		t.Fatalf("applySlippage(1e18, 2%%) = %s, want 980000000000000000", got)
	}

	got = applySlippage(quote, 0.5)
	if got.String() != "995000000000000000" {
		t.Fatalf("applySlippage(1e18, 0.5%%) = %s, want 995000000000000000", got)
	}
}

func TestBuildSwapUsesLiveQuote(t *testing.T) {
	t.Parallel()

	quote, _ := new(big.Int).SetString("1000000000000000000", 10)
	intent, err := BuildSwap(context.Background(), &quoteReader{out: quote}, testRegistry(t), addrRouter, SwapParams{
		FromToken:       "USDC",
		ToToken:         "RISE",
		Amount:          "100",
		SlippagePercent: 2,
		Recipient:       addrUser,
	})
	if err != nil {
		t.Fatalf("BuildSwap() error = %v", err)
	}
	if len(intent.Calls) != 2 {
		t.Fatalf("BuildSwap() calls = %d, want 2 (approve + swap)", len(intent.Calls))
	}
	if intent.Calls[0].To != addrUSDC {
		t.Fatalf("approve target = %s, want input token", intent.Calls[0].To)
	}
	if intent.Calls[1].To != addrRouter {
		t.Fatalf("swap target = %s, want router", intent.Calls[1].To)
	}
	if len(intent.RequiredCallTargets) != 2 {
		t.Fatalf("required targets = %v, want input token and router", intent.RequiredCallTargets)
	}

	// amountOutMin = 98% of the quote must be embedded in the swap calldata.
	args, err := routerABI.Methods["swapExactTokensForTokens"].Inputs.Unpack(intent.Calls[1].Data[4:])
	if err != nil {
		t.Fatalf("unpack swap calldata: %v", err)
	}
	amountOutMin := args[1].(*big.Int)
	if amountOutMin.String() != "980000000000000000" {
		t.Fatalf("amountOutMin = %s, want 980000000000000000", amountOutMin)
	}
}

func TestBuildSwapZeroLiquidityFailsFast(t *testing.T) {
	t.Parallel()

	_, err := BuildSwap(context.Background(), &quoteReader{out: big.NewInt(0)}, testRegistry(t), addrRouter, SwapParams{
		FromToken:       "USDC",
		ToToken:         "RISE",
		Amount:          "100",
		SlippagePercent: 2,
		Recipient:       addrUser,
	})
	if err == nil {
		t.Fatalf("BuildSwap() built calls against a zero quote")
	}
	for _, want := range []string{"USDC", "RISE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("BuildSwap() error %q does not name token %s", err, want)
		}
	}
}

func TestBuildTransferNative(t *testing.T) {
	t.Parallel()

	intent, err := BuildTransfer(testRegistry(t), "ETH", addrUser, "0.25")
	if err != nil {
		t.Fatalf("BuildTransfer() error = %v", err)
	}
	if len(intent.Calls) != 1 {
		t.Fatalf("BuildTransfer() calls = %d, want 1", len(intent.Calls))
	}
	call := intent.Calls[0]
	if call.To != addrUser || len(call.Data) != 0 {
		t.Fatalf("native transfer = %+v, want value-only call to recipient", call)
	}
	if call.Value.String() != "250000000000000000" {
		t.Fatalf("native transfer value = %s, want 250000000000000000", call.Value)
	}
	if len(intent.RequiredCallTargets) != 0 {
		t.Fatalf("native transfer requires call permission %v, want none", intent.RequiredCallTargets)
	}
}

func TestBuildTransferERC20(t *testing.T) {
	t.Parallel()

	intent, err := BuildTransfer(testRegistry(t), "usdc", addrUser, "12.5")
	if err != nil {
		t.Fatalf("BuildTransfer() error = %v", err)
	}
	call := intent.Calls[0]
	if call.To != addrUSDC {
		t.Fatalf("transfer target = %s, want token contract", call.To)
	}
	args, err := erc20ABI.Methods["transfer"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack transfer calldata: %v", err)
	}
	if amount := args[1].(*big.Int); amount.String() != "12500000" {
		t.Fatalf("transfer amount = %s, want 12500000", amount)
	}
	if len(intent.RequiredCallTargets) != 1 || intent.RequiredCallTargets[0] != addrUSDC {
		t.Fatalf("required targets = %v, want token contract", intent.RequiredCallTargets)
	}
}

func TestBuildMint(t *testing.T) {
	t.Parallel()

	intent, err := BuildMint(testRegistry(t), "RISE")
	if err != nil {
		t.Fatalf("BuildMint() error = %v", err)
	}
	if len(intent.Calls) != 1 || intent.Calls[0].To != addrRISE {
		t.Fatalf("BuildMint() = %+v, want one call to token", intent)
	}
	if len(intent.Calls[0].Data) != 4 {
		t.Fatalf("mint calldata = %d bytes, want bare 4-byte selector", len(intent.Calls[0].Data))
	}

	if _, err := BuildMint(testRegistry(t), "ETH"); err == nil {
		t.Fatalf("BuildMint() accepted the native token")
	}
}

func TestLoadRegistry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokens.yaml")
	doc := `tokens:
  - symbol: ETH
    decimals: 18
    native: true
  - symbol: USDC
    address: "` + addrUSDC + `"
    decimals: 6
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	tok, ok := reg.Lookup("usdc")
	if !ok || tok.Address != addrUSDC || tok.Decimals != 6 {
		t.Fatalf("Lookup(usdc) = %+v ok=%v", tok, ok)
	}
}
