package lending

import (
	"math/big"
	"testing"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad amount " + s)
	}
	return v
}

func TestTripleSlopeModel(t *testing.T) {
	model := TripleSlopeModel{}
	cases := []struct {
		name     string
		debt     *big.Int
		floating *big.Int
		want     string
	}{
		{"idle", big.NewInt(0), wei("100"), "0"},
		{"empty", big.NewInt(0), big.NewInt(0), "0"},
		{"half used", wei("50"), wei("50"), "1981861998"},
		{"flat segment", wei("85"), wei("15"), "3170979198"},
		{"steep segment", wei("95"), wei("5"), "9512937595"},
		{"fully used", wei("100"), big.NewInt(0), "15854895991"},
	}
	for _, tc := range cases {
		got, err := model.RatePerSecond(tc.debt, tc.floating)
		if err != nil {
			t.Fatalf("%s: rate: %v", tc.name, err)
		}
		if got.String() != tc.want {
			t.Fatalf("%s: unexpected rate: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestFixedRateAccrual(t *testing.T) {
	model := FixedRateModel{Rate: big.NewInt(3472222222222)}
	rate, err := model.RatePerSecond(wei("1000000000000000000"), big.NewInt(0))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	interest, err := AccruedInterest(rate, wei("1000000000000000000"), 24*60*60)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if interest.String() != "299999999999980800" {
		t.Fatalf("unexpected interest: got %s want 299999999999980800", interest)
	}
	zero, err := AccruedInterest(rate, wei("1000000000000000000"), 0)
	if err != nil || zero.Sign() != 0 {
		t.Fatalf("expected no interest without elapsed time, got %v %v", zero, err)
	}
}

func TestUtilisation(t *testing.T) {
	if u := Utilisation(big.NewInt(0), big.NewInt(10)); u.Sign() != 0 {
		t.Fatalf("expected zero utilisation, got %s", u.RatString())
	}
	if u := Utilisation(big.NewInt(1), big.NewInt(3)); u.RatString() != "1/4" {
		t.Fatalf("unexpected utilisation: got %s want 1/4", u.RatString())
	}
}

func TestPoolConfigValidation(t *testing.T) {
	cfg := PoolConfig{InterestModel: " Triple-Slope "}
	cfg.EnsureDefaults()
	if cfg.InterestModel != ModelTripleSlope || cfg.MinDebtSize == nil || cfg.RatePerSecond == nil {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := mustModel(t, cfg).(TripleSlopeModel); !ok {
		t.Fatalf("expected triple slope model")
	}
	cfg.ReservePoolBps = 10_001
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected reserve bps rejection")
	}
	cfg.ReservePoolBps = 0
	cfg.InterestModel = "jump"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown model rejection")
	}

	if err := (VaultConfig{IsVault: true, WorkFactorBps: 8000, KillFactorBps: 8000}).Validate(); err != ErrBadFactors {
		t.Fatalf("expected ErrBadFactors, got %v", err)
	}
	if err := (VaultConfig{IsVault: true, WorkFactorBps: 7000, KillFactorBps: 8000}).Validate(); err != nil {
		t.Fatalf("unexpected vault config error: %v", err)
	}
}

func mustModel(t *testing.T, cfg PoolConfig) InterestModel {
	t.Helper()
	model, err := cfg.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return model
}
