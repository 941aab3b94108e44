package genesis

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/state"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

var (
	owner     = common.HexToAddress("0xde")
	mockPair  = common.HexToAddress("0x5a")
	mockVault = common.HexToAddress("0x60")
	uniVault  = common.HexToAddress("0x61")
)

func loadLocal(t *testing.T) *GenesisSpec {
	t.Helper()
	spec, err := LoadGenesisSpec(filepath.Join("testdata", "local.json"))
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	return spec
}

func TestLoadGenesisSpecAndSeed(t *testing.T) {
	spec := loadLocal(t)
	if spec.OwnerAddress() != owner {
		t.Fatalf("unexpected owner: got %s want %s", spec.OwnerAddress().Hex(), owner.Hex())
	}

	db := storage.NewMemDB()
	ledger := state.NewManager(db)
	deploy, err := Build(spec, ledger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	deploy.Wire(func() time.Time { return now }, nil, nil)
	if err := deploy.Seed(ledger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ledger.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reserveBase, reservePaired, err := deploy.Pairs[mockPair].Reserves()
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if reserveBase.String() != "1000000000000000000" || reservePaired.String() != "100000000000000000" {
		t.Fatalf("unexpected reserves: %s/%s", reserveBase, reservePaired)
	}
	uni, err := ledger.Balance(owner, "UNI")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if uni.String() != "3900000000000000000" {
		t.Fatalf("unexpected owner UNI: got %s want 3900000000000000000", uni)
	}
	cfg, err := deploy.Bank.Config()
	if err != nil {
		t.Fatalf("bank config: %v", err)
	}
	if cfg.RatePerSecond.String() != "3472222222222" || cfg.ReservePoolBps != 1000 {
		t.Fatalf("unexpected bank config: %+v", cfg)
	}
	vcfg, err := deploy.Bank.VaultConfig(uniVault)
	if err != nil {
		t.Fatalf("vault config: %v", err)
	}
	if !vcfg.IsVault || vcfg.WorkFactorBps != 7000 || vcfg.KillFactorBps != 8000 {
		t.Fatalf("unexpected vault config: %+v", vcfg)
	}
	ok, err := deploy.Goblins[mockVault].StrategyOK(strategy.IDWithdrawMinimizeTrading)
	if err != nil || !ok {
		t.Fatalf("expected withdraw strategy approved, got %v %v", ok, err)
	}
	if got := deploy.VaultAddresses(); len(got) != 2 || got[0] != mockVault || got[1] != uniVault {
		t.Fatalf("unexpected vault order: %v", got)
	}

	if err := deploy.Seed(ledger); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}

	// A restart rebuilds the components over the committed state.
	reopened := state.NewManager(db)
	applied, err := Applied(reopened)
	if err != nil || !applied {
		t.Fatalf("expected applied marker, got %v %v", applied, err)
	}
	again, err := Build(spec, reopened)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	staked, err := again.Chefs[common.HexToAddress("0x5c")].Farm(0)
	if err != nil {
		t.Fatalf("chef farm: %v", err)
	}
	if staked.StakedAsset() != "LP-UNI" {
		t.Fatalf("unexpected chef pool asset %q", staked.StakedAsset())
	}
	health, err := again.Goblins[uniVault].Health(1)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Sign() != 0 {
		t.Fatalf("expected empty position, got %s", health)
	}
}

func TestGenesisSpecRejectsInconsistentDocuments(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "local.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cases := []struct {
		name string
		old  string
		new  string
		want string
	}{
		{"unknown field", `"owner":`, `"operator": "x", "owner":`, "unknown field"},
		{"factors", `"killFactorBps": 8000,`, `"killFactorBps": 7000,`, "kill factor"},
		{"missing pair", `"pair": "0x000000000000000000000000000000000000005b"`, `"pair": "0x000000000000000000000000000000000000005f"`, "not deployed"},
		{"shared address", `"address": "0x0000000000000000000000000000000000000071"`, `"address": "0x00000000000000000000000000000000000000ba"`, "already used"},
		{"bad amount", `"reward": "1000000000000000000"`, `"reward": "-1"`, "negative"},
		{"bad strategy", `"kind": "liquidate", "address": "0x0000000000000000000000000000000000000073"`, `"kind": "flashloan", "address": "0x0000000000000000000000000000000000000073"`, "unknown strategy"},
	}
	for _, tc := range cases {
		doc := strings.Replace(string(raw), tc.old, tc.new, 1)
		if doc == string(raw) {
			t.Fatalf("%s: replacement did not apply", tc.name)
		}
		_, err := ParseGenesisSpec([]byte(doc))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseAmountString(t *testing.T) {
	v, err := parseAmountString(" 42 ")
	if err != nil || v.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("unexpected amount: %v %v", v, err)
	}
	if v, err := parseAmountString(""); err != nil || v.Sign() != 0 {
		t.Fatalf("expected empty amount to be zero, got %v %v", v, err)
	}
	if _, err := parseAmountString("1e18"); err == nil {
		t.Fatalf("expected scientific notation rejection")
	}
}
