package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/state"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func amount(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad amount %q", s)
	}
	return v
}

func newTestRouter(t *testing.T) (*Router, *state.Manager) {
	t.Helper()
	ledger := state.NewManager(storage.NewMemDB())
	pair, err := NewPair(ledger, common.HexToAddress("0x5a"), "ETH", "MOCK", "LP-ETH-MOCK", DefaultFee)
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	return NewRouter(pair), ledger
}

func fund(t *testing.T, ledger *state.Manager, to common.Address, asset string, v *big.Int) {
	t.Helper()
	if err := ledger.Mint(to, asset, v); err != nil {
		t.Fatalf("mint %s: %v", asset, err)
	}
}

func TestGetAmountOutAndIn(t *testing.T) {
	out, err := GetAmountOut(ether(1), ether(1), ether(1), DefaultFee)
	if err != nil {
		t.Fatalf("amount out: %v", err)
	}
	if want := amount(t, "499248873309964947"); out.Cmp(want) != 0 {
		t.Fatalf("unexpected amount out: got %s want %s", out, want)
	}
	// The floored output is a little cheaper to buy back.
	in, err := GetAmountIn(out, ether(1), ether(1), DefaultFee)
	if err != nil {
		t.Fatalf("amount in: %v", err)
	}
	if want := amount(t, "999999999999999999"); in.Cmp(want) != 0 {
		t.Fatalf("unexpected amount in: got %s want %s", in, want)
	}

	// The quoted input is the least that buys the requested output.
	target := amount(t, "500000000000000000")
	in, err = GetAmountIn(target, ether(1), ether(1), DefaultFee)
	if err != nil {
		t.Fatalf("amount in: %v", err)
	}
	if want := amount(t, "1003009027081243732"); in.Cmp(want) != 0 {
		t.Fatalf("unexpected amount in: got %s want %s", in, want)
	}
	if got, _ := GetAmountOut(in, ether(1), ether(1), DefaultFee); got.Cmp(target) < 0 {
		t.Fatalf("quoted input must buy the target: got %s", got)
	}
	short := new(big.Int).Sub(in, big.NewInt(1))
	if got, _ := GetAmountOut(short, ether(1), ether(1), DefaultFee); got.Cmp(target) >= 0 {
		t.Fatalf("one unit less must fall short: got %s", got)
	}
	if _, err := GetAmountIn(ether(1), ether(1), ether(1), DefaultFee); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
	if _, err := GetAmountOut(big.NewInt(0), ether(1), ether(1), DefaultFee); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddLiquidityAtPoolRatio(t *testing.T) {
	router, ledger := newTestRouter(t)
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0")
	fund(t, ledger, alice, "ETH", ether(1))
	fund(t, ledger, alice, "MOCK", ether(1))
	fund(t, ledger, bob, "ETH", ether(1))
	fund(t, ledger, bob, "MOCK", ether(1))

	tenth := new(big.Int).Div(ether(1), big.NewInt(10))
	if _, _, lp, err := router.AddLiquidity(alice, alice, ether(1), tenth, nil, nil); err != nil {
		t.Fatalf("alice add: %v", err)
	} else if want := amount(t, "316227766016836933"); lp.Cmp(want) != 0 {
		t.Fatalf("unexpected alice lp: got %s want %s", lp, want)
	}

	// Bob offers 1 MOCK but the ratio only takes 0.1.
	_, paired, lp, err := router.AddLiquidity(bob, bob, ether(1), ether(1), nil, nil)
	if err != nil {
		t.Fatalf("bob add: %v", err)
	}
	if paired.Cmp(tenth) != 0 {
		t.Fatalf("unexpected paired used: got %s want %s", paired, tenth)
	}
	if want := amount(t, "316227766016837933"); lp.Cmp(want) != 0 {
		t.Fatalf("unexpected bob lp: got %s want %s", lp, want)
	}
	left, _ := ledger.Balance(bob, "MOCK")
	if want := amount(t, "900000000000000000"); left.Cmp(want) != 0 {
		t.Fatalf("unexpected bob MOCK: got %s want %s", left, want)
	}

	base, pairedOut, err := router.RemoveLiquidity(bob, bob, lp, nil, nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if base.Cmp(ether(1)) != 0 || pairedOut.Cmp(tenth) != 0 {
		t.Fatalf("unexpected removal: %s ETH %s MOCK", base, pairedOut)
	}
}

func TestSwapsKeepConstantProduct(t *testing.T) {
	router, ledger := newTestRouter(t)
	lp := common.HexToAddress("0x11")
	trader := common.HexToAddress("0x22")
	fund(t, ledger, lp, "ETH", ether(10))
	fund(t, ledger, lp, "MOCK", ether(10))
	fund(t, ledger, trader, "MOCK", ether(5))
	if _, _, _, err := router.AddLiquidity(lp, lp, ether(10), ether(10), nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rb, rp, _ := router.Reserves()
	before := new(big.Int).Mul(rb, rp)

	out, err := router.SwapExactIn(trader, trader, "MOCK", ether(1), nil)
	if err != nil {
		t.Fatalf("swap in: %v", err)
	}
	got, _ := ledger.Balance(trader, "ETH")
	if got.Cmp(out) != 0 {
		t.Fatalf("trader did not receive output: got %s want %s", got, out)
	}
	rb, rp, _ = router.Reserves()
	if after := new(big.Int).Mul(rb, rp); after.Cmp(before) <= 0 {
		t.Fatalf("constant product must grow with fees: before %s after %s", before, after)
	}

	if _, err := router.SwapExactIn(trader, trader, "MOCK", ether(1), ether(5)); !errors.Is(err, ErrInsufficientOutputAmount) {
		t.Fatalf("expected slippage failure, got %v", err)
	}
	want := new(big.Int).Div(ether(1), big.NewInt(2))
	in, err := router.SwapExactOut(trader, trader, "MOCK", want, nil)
	if err != nil {
		t.Fatalf("swap out: %v", err)
	}
	if in.Sign() <= 0 {
		t.Fatalf("unexpected input: %s", in)
	}
	if _, err := router.SwapExactOut(trader, trader, "MOCK", want, big.NewInt(1)); !errors.Is(err, ErrExcessiveInputAmount) {
		t.Fatalf("expected excessive input, got %v", err)
	}
	if _, err := router.AmountOut("DAI", ether(1)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected unknown asset, got %v", err)
	}
}

func TestPairRejectsUnpaidSwap(t *testing.T) {
	router, ledger := newTestRouter(t)
	lp := common.HexToAddress("0x11")
	fund(t, ledger, lp, "ETH", ether(2))
	fund(t, ledger, lp, "MOCK", ether(2))
	if _, _, _, err := router.AddLiquidity(lp, lp, ether(2), ether(2), nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := router.Pair().Swap(big.NewInt(1000), nil, lp); !errors.Is(err, ErrInsufficientInputAmount) {
		t.Fatalf("expected unpaid swap rejection, got %v", err)
	}
}
