package lending

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/state"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/amm"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/staking"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/vault"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

var (
	deployer = common.HexToAddress("0xde")
	alice    = common.HexToAddress("0xa1")
	bob      = common.HexToAddress("0xb0")
	eve      = common.HexToAddress("0xe0")
	bankAt   = common.HexToAddress("0xba")
	goblinAt = common.HexToAddress("0x60")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func tenths(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e17))
}

type fixture struct {
	ledger   *state.Manager
	clock    *time.Time
	mock     *amm.Router
	uni      *amm.Router
	goblin   *vault.Goblin
	bank     *Bank
	recorder *events.Recorder
}

// newFixture deploys a bank lending ETH at 30% a year with a 1 ETH minimum
// debt, a 10% reserve and a 10% kill bounty, and one goblin farming the
// 1 ETH / 0.1 MOCK pool with a 7000/8000 work/kill factor.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := state.NewManager(storage.NewMemDB())
	now := time.Unix(1_700_000_000, 0)
	f := &fixture{ledger: ledger, clock: &now, recorder: &events.Recorder{}}

	mockPair, err := amm.NewPair(ledger, common.HexToAddress("0x5a"), "ETH", "MOCK", "LP-MOCK", amm.DefaultFee)
	require.NoError(t, err)
	uniPair, err := amm.NewPair(ledger, common.HexToAddress("0x5b"), "ETH", "UNI", "LP-UNI", amm.DefaultFee)
	require.NoError(t, err)
	f.mock, f.uni = amm.NewRouter(mockPair), amm.NewRouter(uniPair)

	require.NoError(t, ledger.Mint(deployer, "ETH", ether(100)))
	require.NoError(t, ledger.Mint(deployer, "MOCK", ether(101)))
	require.NoError(t, ledger.Mint(deployer, "UNI", ether(2)))
	for _, who := range []common.Address{alice, bob} {
		require.NoError(t, ledger.Mint(who, "ETH", ether(10)))
	}
	_, _, _, err = f.mock.AddLiquidity(deployer, deployer, ether(1), tenths(1), nil, nil)
	require.NoError(t, err)
	_, _, _, err = f.uni.AddLiquidity(deployer, deployer, ether(1), tenths(1), nil, nil)
	require.NoError(t, err)

	farm, err := staking.NewRewardsPool(ledger, common.HexToAddress("0x5e"), "LP-MOCK", "UNI", deployer)
	require.NoError(t, err)
	farm.SetClock(f.now)
	require.NoError(t, ledger.Transfer(deployer, farm.Address(), "UNI", ether(1)))
	require.NoError(t, farm.NotifyRewardAmount(deployer, ether(1)))

	add, err := strategy.NewAddBaseOnly(ledger, common.HexToAddress("0x51"), deployer)
	require.NoError(t, err)
	liq, err := strategy.NewLiquidate(ledger, common.HexToAddress("0x53"), deployer)
	require.NoError(t, err)
	registry, err := strategy.NewRegistry(add, liq)
	require.NoError(t, err)
	f.goblin, err = vault.NewGoblin(ledger, vault.Config{
		Address:           goblinAt,
		Operator:          bankAt,
		Owner:             deployer,
		ReinvestBountyBps: 100,
		AddStrategy:       strategy.IDAddBaseOnly,
		LiquidateStrategy: strategy.IDLiquidate,
	}, f.mock, farm, registry)
	require.NoError(t, err)
	f.goblin.SetRewardRoute(f.uni)

	f.bank, err = NewBank(ledger, bankAt, "ETH", "ibETH", deployer, PoolConfig{
		MinDebtSize:    ether(1),
		RatePerSecond:  big.NewInt(3472222222222),
		ReservePoolBps: 1000,
		KillBountyBps:  1000,
	})
	require.NoError(t, err)
	f.bank.SetClock(f.now)
	f.bank.SetEmitter(f.recorder)
	require.NoError(t, f.bank.RegisterVault(deployer, f.goblin, VaultConfig{
		IsVault:       true,
		AcceptsDebt:   true,
		WorkFactorBps: 7000,
		KillFactorBps: 8000,
	}))
	return f
}

func (f *fixture) now() time.Time { return *f.clock }

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) balance(t *testing.T, addr common.Address, asset string) *big.Int {
	t.Helper()
	bal, err := f.ledger.Balance(addr, asset)
	require.NoError(t, err)
	return bal
}

func (f *fixture) pool(t *testing.T) *PoolView {
	t.Helper()
	view, err := f.bank.Pool()
	require.NoError(t, err)
	require.Zero(t, view.TotalBaseAsset.Cmp(new(big.Int).Add(view.Held, view.GlobalDebtValue)))
	require.True(t, view.Reserve.Cmp(view.TotalBaseAsset) <= 0)
	return view
}

func (f *fixture) netAssets(t *testing.T) string {
	t.Helper()
	net, err := f.bank.NetAssets()
	require.NoError(t, err)
	return net.String()
}

func openRequest(id uint64, loan, principal *big.Int) WorkRequest {
	return WorkRequest{
		PositionID: id,
		Vault:      goblinAt,
		Loan:       loan,
		Principal:  principal,
		Params:     strategy.AddBaseOnlyParams{MinLP: big.NewInt(0)},
	}
}

func TestBankLeveragedFarmLifecycle(t *testing.T) {
	f := newFixture(t)

	_, err := f.bank.Work(alice, openRequest(0, ether(1), ether(1)))
	require.ErrorIs(t, err, ErrInsufficientETH)
	require.EqualError(t, err, "insufficient ETH in the bank")

	shares, err := f.bank.Deposit(deployer, ether(3))
	require.NoError(t, err)
	require.Equal(t, ether(3).String(), shares.String())

	res, err := f.bank.Work(alice, openRequest(0, ether(1), ether(1)))
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.PositionID)
	require.Equal(t, ether(1).String(), res.Debt.String())
	require.Zero(t, res.Payout.Sign())
	health, err := f.bank.Health(1)
	require.NoError(t, err)
	require.Equal(t, "1997459271062521105", health.String())
	require.Equal(t, "9000000000000000054", f.balance(t, alice, "ETH").String())

	// One day later someone compounds the farm rewards and pokes the pool.
	f.advance(24 * time.Hour)
	bounty, err := f.goblin.Reinvest(eve)
	require.NoError(t, err)
	require.Equal(t, "1428571428571295", bounty.String())
	_, err = f.bank.Deposit(deployer, big.NewInt(0))
	require.NoError(t, err)

	info, err := f.bank.PositionInfo(1)
	require.NoError(t, err)
	require.Equal(t, "2582123996372678381", info.Health.String())
	require.Equal(t, "1299999999999980800", info.Debt.String())
	view := f.pool(t)
	require.Equal(t, ether(2).String(), view.Held.String())
	require.Equal(t, "1299999999999980800", view.GlobalDebtValue.String())
	require.Equal(t, "29999999999998080", view.Reserve.String())
	require.Equal(t, "3269999999999982720", f.netAssets(t))

	_, err = f.bank.Kill(eve, 1)
	require.ErrorIs(t, err, ErrCannotLiquidate)
	require.EqualError(t, err, "can't liquidate")
	f.advance(24 * time.Hour)
	_, err = f.bank.Kill(eve, 1)
	require.ErrorIs(t, err, ErrCannotLiquidate)
	f.advance(24 * time.Hour)
	_, err = f.bank.Deposit(deployer, big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, "3971999999999927424", f.netAssets(t))

	killable, err := f.bank.Killable(1)
	require.NoError(t, err)
	require.True(t, killable)
	eveBefore := f.balance(t, eve, "ETH")
	kill, err := f.bank.Kill(eve, 1)
	require.NoError(t, err)
	require.Equal(t, "2079999999999919360", kill.Debt.String())
	require.Equal(t, "2582123996372678381", kill.Released.String())
	require.Equal(t, "258212399637267838", kill.Bounty.String())
	require.Equal(t, "50212399637275902", kill.ReserveCut.String())
	require.Equal(t, "193699197098215281", kill.Left.String())
	require.Zero(t, kill.BadDebt.Sign())
	require.Equal(t, new(big.Int).Add(eveBefore, kill.Bounty).String(), f.balance(t, eve, "ETH").String())
	require.Equal(t, "9193699197098215335", f.balance(t, alice, "ETH").String())

	view = f.pool(t)
	require.Zero(t, view.GlobalDebtValue.Sign())
	require.Zero(t, view.GlobalDebtShare.Sign())
	require.Equal(t, "4130212399637195262", view.Held.String())
	require.Equal(t, "158212399637267838", view.Reserve.String())
	require.Equal(t, "3971999999999927424", f.netAssets(t))
	_, err = f.bank.Position(1)
	require.ErrorIs(t, err, ErrUnknownPosition)
	require.Len(t, f.recorder.OfType(events.TypePositionKilled), 1)

	// Alice opens a fresh position and closes it straight away.
	res, err = f.bank.Work(alice, openRequest(0, ether(1), ether(1)))
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.PositionID)
	closed, err := f.bank.Work(alice, WorkRequest{
		PositionID: 2,
		Vault:      goblinAt,
		Params:     strategy.LiquidateParams{MinBase: big.NewInt(0)},
	})
	require.NoError(t, err)
	require.Zero(t, closed.Debt.Sign())
	require.Equal(t, ether(1).String(), closed.Repaid.String())
	require.Equal(t, 1, closed.Payout.Sign())
	share, err := f.goblin.Shares(2)
	require.NoError(t, err)
	require.Zero(t, share.Sign())
	_, err = f.bank.Position(2)
	require.ErrorIs(t, err, ErrUnknownPosition)
	live, err := f.bank.Positions()
	require.NoError(t, err)
	require.Empty(t, live)
	view = f.pool(t)
	require.Zero(t, view.GlobalDebtValue.Sign())
	require.Equal(t, "3971999999999927424", f.netAssets(t))
}

func TestBankBadDebtIsSocialised(t *testing.T) {
	f := newFixture(t)
	_, err := f.bank.Deposit(deployer, ether(10))
	require.NoError(t, err)

	// Bob borrows 2 ETH on top of 1 ETH of his own and keeps nothing back.
	_, err = f.bank.Work(bob, WorkRequest{
		Vault:     goblinAt,
		Loan:      ether(2),
		Principal: ether(1),
		MaxReturn: big.NewInt(0),
		Params:    strategy.AddBaseOnlyParams{MinLP: big.NewInt(0)},
	})
	require.NoError(t, err)
	view := f.pool(t)
	require.Equal(t, ether(8).String(), view.Held.String())
	require.Equal(t, ether(2).String(), view.GlobalDebtValue.String())
	require.Equal(t, ether(10).String(), f.netAssets(t))

	shares, err := f.bank.Deposit(alice, ether(2))
	require.NoError(t, err)
	require.Equal(t, ether(2).String(), shares.String())

	// Dumping 100 MOCK into the pool crashes the value of Bob's LP.
	_, err = f.mock.SwapExactIn(deployer, deployer, "MOCK", ether(100), nil)
	require.NoError(t, err)

	kill, err := f.bank.Kill(alice, 1)
	require.NoError(t, err)
	require.Equal(t, "3002999235795062", kill.Released.String())
	require.Equal(t, "300299923579506", kill.Bounty.String())
	require.Equal(t, "1997297300687784444", kill.BadDebt.String())
	require.Zero(t, kill.Left.Sign())
	require.Zero(t, kill.ReserveCut.Sign())
	view = f.pool(t)
	require.Equal(t, "10002702699312215556", view.Held.String())
	require.Zero(t, view.GlobalDebtValue.Sign())

	amount, err := f.bank.Withdraw(alice, ether(2))
	require.NoError(t, err)
	require.Equal(t, "1667117116552035926", amount.String())
}

// stubVault hands back preset amounts so pool rules can be probed at exact
// boundaries.
type stubVault struct {
	ledger nativecommon.Ledger
	addr   common.Address
	health *big.Int
	back   *big.Int
}

func (v *stubVault) Address() common.Address { return v.addr }

func (v *stubVault) Work(caller common.Address, _ uint64, _ common.Address, _ *big.Int, _ strategy.Params) (*big.Int, error) {
	back := nativecommon.Clone(v.back)
	v.back = nil
	if back.Sign() > 0 {
		if err := v.ledger.Transfer(v.addr, caller, "ETH", back); err != nil {
			return nil, err
		}
	}
	return back, nil
}

func (v *stubVault) Liquidate(caller common.Address, _ uint64) (*big.Int, error) {
	bal, err := v.ledger.Balance(v.addr, "ETH")
	if err != nil {
		return nil, err
	}
	return bal, v.ledger.Transfer(v.addr, caller, "ETH", bal)
}

func (v *stubVault) Health(uint64) (*big.Int, error) { return nativecommon.Clone(v.health), nil }

// Shares treats everything the stub holds as the position's stake.
func (v *stubVault) Shares(uint64) (*big.Int, error) { return v.ledger.Balance(v.addr, "ETH") }

type stubFixture struct {
	ledger *state.Manager
	clock  *time.Time
	vault  *stubVault
	bank   *Bank
	pauses *nativecommon.Pauses
}

func newStubFixture(t *testing.T) *stubFixture {
	t.Helper()
	ledger := state.NewManager(storage.NewMemDB())
	now := time.Unix(1_700_000_000, 0)
	f := &stubFixture{ledger: ledger, clock: &now, pauses: nativecommon.NewPauses()}
	f.vault = &stubVault{ledger: ledger, addr: common.HexToAddress("0x61"), health: ether(2)}

	var err error
	f.bank, err = NewBank(ledger, bankAt, "ETH", "ibETH", deployer, PoolConfig{
		MinDebtSize:    tenths(5),
		ReservePoolBps: 1000,
		KillBountyBps:  1000,
	})
	require.NoError(t, err)
	f.bank.SetClock(func() time.Time { return *f.clock })
	f.bank.SetPauses(f.pauses)
	require.NoError(t, f.bank.RegisterVault(deployer, f.vault, VaultConfig{
		IsVault:       true,
		AcceptsDebt:   true,
		WorkFactorBps: 7000,
		KillFactorBps: 8000,
	}))
	for _, who := range []common.Address{deployer, alice, bob} {
		require.NoError(t, ledger.Mint(who, "ETH", ether(10)))
	}
	_, err = f.bank.Deposit(deployer, ether(10))
	require.NoError(t, err)
	return f
}

// attempt runs a call with all-or-nothing semantics, as a transaction would.
func (f *stubFixture) attempt(fn func() error) error {
	snap := f.ledger.Snapshot()
	err := fn()
	if err != nil {
		f.ledger.RevertToSnapshot(snap)
	}
	return err
}

func (f *stubFixture) work(caller common.Address, req WorkRequest) (*WorkResult, error) {
	if req.Vault == (common.Address{}) {
		req.Vault = f.vault.addr
	}
	var res *WorkResult
	err := f.attempt(func() error {
		var err error
		res, err = f.bank.Work(caller, req)
		return err
	})
	return res, err
}

func (f *stubFixture) balance(t *testing.T, addr common.Address) *big.Int {
	t.Helper()
	bal, err := f.ledger.Balance(addr, "ETH")
	require.NoError(t, err)
	return bal
}

func (f *stubFixture) debt(t *testing.T, id uint64) string {
	t.Helper()
	info, err := f.bank.PositionInfo(id)
	require.NoError(t, err)
	return info.Debt.String()
}

func TestKillBoundary(t *testing.T) {
	f := newStubFixture(t)
	_, err := f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)

	// health * 8000 == debt * 10000 is still safe, even for the owner.
	f.vault.health = wei("1250000000000000000")
	for _, killer := range []common.Address{bob, alice} {
		_, err = f.bank.Kill(killer, 1)
		require.ErrorIs(t, err, ErrCannotLiquidate)
		require.ErrorIs(t, err, nativecommon.ErrCollateral)
	}

	f.vault.health = wei("1249999999999999999")
	res, err := f.bank.Kill(bob, 1)
	require.NoError(t, err)
	require.Equal(t, tenths(1).String(), res.Bounty.String())
	require.Equal(t, tenths(1).String(), res.BadDebt.String())
	require.Equal(t, "10100000000000000000", f.balance(t, bob).String())
	_, err = f.bank.Position(1)
	require.ErrorIs(t, err, ErrUnknownPosition)
}

func TestKillReserveCutComesFromProceedsOverDebt(t *testing.T) {
	f := newStubFixture(t)
	_, err := f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)

	// 1.05 ETH comes back: above the debt but short of debt plus bounty.
	require.NoError(t, f.ledger.Mint(f.vault.addr, "ETH", wei("50000000000000000")))
	f.vault.health = tenths(12)
	res, err := f.bank.Kill(bob, 1)
	require.NoError(t, err)
	require.Equal(t, "1050000000000000000", res.Released.String())
	require.Equal(t, "105000000000000000", res.Bounty.String())
	require.Equal(t, "5000000000000000", res.ReserveCut.String())
	require.Equal(t, "60000000000000000", res.BadDebt.String())
	require.Zero(t, res.Left.Sign())

	view, err := f.bank.Pool()
	require.NoError(t, err)
	require.Equal(t, "5000000000000000", view.Reserve.String())
	require.Zero(t, view.GlobalDebtValue.Sign())
}

func TestClosedPositionsAreDropped(t *testing.T) {
	f := newStubFixture(t)

	// No loan and a stake left behind: the position stays open.
	res, err := f.work(alice, WorkRequest{Principal: ether(1)})
	require.NoError(t, err)
	require.Zero(t, res.Debt.Sign())
	_, err = f.bank.Kill(bob, 1)
	require.ErrorIs(t, err, ErrNoDebt)

	f.vault.back = ether(1)
	res, err = f.work(alice, WorkRequest{PositionID: 1})
	require.NoError(t, err)
	require.Equal(t, ether(1).String(), res.Payout.String())
	_, err = f.bank.Position(1)
	require.ErrorIs(t, err, ErrUnknownPosition)
	live, err := f.bank.Positions()
	require.NoError(t, err)
	require.Empty(t, live)
	_, err = f.work(alice, WorkRequest{PositionID: 1})
	require.ErrorIs(t, err, ErrUnknownPosition)
}

func TestWorkFactorGatesOnlyDebtIncreases(t *testing.T) {
	f := newStubFixture(t)

	_, err := f.work(alice, WorkRequest{Loan: tenths(15)})
	require.ErrorIs(t, err, ErrBadWorkFactor)
	require.EqualError(t, err, "bad work factor")
	_, err = f.work(alice, WorkRequest{Loan: tenths(3)})
	require.ErrorIs(t, err, ErrDebtTooSmall)
	require.EqualError(t, err, "too small debt size")
	_, err = f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)

	// The position is now over the work factor.
	f.vault.health = tenths(12)
	_, err = f.work(alice, WorkRequest{PositionID: 1})
	require.ErrorIs(t, err, ErrBadWorkFactor)
	_, err = f.work(alice, WorkRequest{PositionID: 1, Loan: tenths(1)})
	require.ErrorIs(t, err, ErrBadWorkFactor)

	// Paying down is always allowed.
	f.vault.back = tenths(2)
	res, err := f.work(alice, WorkRequest{PositionID: 1})
	require.NoError(t, err)
	require.Equal(t, tenths(2).String(), res.Repaid.String())
	require.Equal(t, tenths(8).String(), f.debt(t, 1))

	// But not below the minimum debt size.
	f.vault.back = tenths(5)
	_, err = f.work(alice, WorkRequest{PositionID: 1})
	require.ErrorIs(t, err, ErrDebtTooSmall)
	require.Equal(t, tenths(8).String(), f.debt(t, 1))

	// MaxReturn caps the repayment; the rest goes to the owner.
	before := f.balance(t, alice)
	f.vault.back = tenths(2)
	res, err = f.work(alice, WorkRequest{PositionID: 1, MaxReturn: tenths(1)})
	require.NoError(t, err)
	require.Equal(t, tenths(1).String(), res.Repaid.String())
	require.Equal(t, tenths(1).String(), res.Payout.String())
	require.Equal(t, new(big.Int).Add(before, tenths(1)).String(), f.balance(t, alice).String())
	require.Equal(t, tenths(7).String(), f.debt(t, 1))

	f.vault.back = tenths(1)
	_, err = f.work(alice, WorkRequest{PositionID: 1, MaxReturn: big.NewInt(0), MinReturn: tenths(2)})
	require.ErrorIs(t, err, ErrSlippageExceeded)
	require.ErrorIs(t, err, nativecommon.ErrSlippage)

	// Repaying everything closes out the debt.
	require.NoError(t, f.ledger.Mint(f.vault.addr, "ETH", tenths(4)))
	f.vault.back = ether(1)
	res, err = f.work(alice, WorkRequest{PositionID: 1})
	require.NoError(t, err)
	require.Zero(t, res.Debt.Sign())
	require.Equal(t, tenths(3).String(), res.Payout.String())
	_, err = f.bank.Kill(bob, 1)
	require.ErrorIs(t, err, ErrUnknownPosition)
}

func TestWorkRejectsBadCalls(t *testing.T) {
	f := newStubFixture(t)
	_, err := f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)

	cases := []struct {
		name   string
		caller common.Address
		req    WorkRequest
		want   string
	}{
		{"unknown vault", alice, WorkRequest{Vault: common.HexToAddress("0x99")}, "not a goblin"},
		{"other owner", bob, WorkRequest{PositionID: 1}, "not position owner"},
		{"other vault", alice, WorkRequest{PositionID: 1, Vault: common.HexToAddress("0x99")}, "bad position goblin"},
		{"unknown position", alice, WorkRequest{PositionID: 7}, "bad position id"},
		{"loan above liquidity", bob, WorkRequest{Loan: ether(10)}, "insufficient ETH in the bank"},
	}
	for _, tc := range cases {
		_, err := f.work(tc.caller, tc.req)
		require.EqualError(t, err, tc.want, tc.name)
	}

	require.NoError(t, f.bank.SetVault(deployer, f.vault.addr, VaultConfig{
		IsVault:       true,
		WorkFactorBps: 7000,
		KillFactorBps: 8000,
	}))
	_, err = f.work(bob, WorkRequest{Loan: ether(1)})
	require.EqualError(t, err, "goblin not accept more debt")
	res, err := f.work(bob, WorkRequest{Principal: ether(1)})
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.PositionID)

	next, err := f.bank.NextPositionID()
	require.NoError(t, err)
	require.Equal(t, uint64(3), next)
	positions, err := f.bank.Positions()
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Equal(t, bob, positions[1].Owner)
}

func TestDepositAndWithdrawShares(t *testing.T) {
	f := newStubFixture(t)
	_, err := f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)

	// 9 ETH is on hand and 1 ETH is lent out.
	_, err = f.bank.Withdraw(deployer, ether(10))
	require.ErrorIs(t, err, ErrInsufficientETH)
	_, err = f.bank.Withdraw(bob, ether(1))
	require.ErrorIs(t, err, ErrInsufficientShares)
	_, err = f.bank.Withdraw(deployer, big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	amount, err := f.bank.Withdraw(deployer, ether(4))
	require.NoError(t, err)
	require.Equal(t, ether(4).String(), amount.String())
	shares, err := f.bank.Deposit(bob, ether(2))
	require.NoError(t, err)
	require.Equal(t, ether(2).String(), shares.String())
	total, err := f.bank.TotalBaseAsset()
	require.NoError(t, err)
	require.Equal(t, ether(8).String(), total.String())
}

func TestReserveAdministration(t *testing.T) {
	f := newStubFixture(t)
	rec := &events.Recorder{}
	f.bank.SetEmitter(rec)

	require.ErrorIs(t, f.bank.SetParams(bob, tenths(5), big.NewInt(1e9), 1000, 1000), nativecommon.ErrNotOwner)
	require.NoError(t, f.bank.SetParams(deployer, tenths(5), big.NewInt(1e9), 1000, 1000))
	cfg, err := f.bank.Config()
	require.NoError(t, err)
	require.Equal(t, "1000000000", cfg.RatePerSecond.String())
	require.Len(t, rec.OfType(events.TypeParamsUpdated), 1)

	_, err = f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)
	*f.clock = f.clock.Add(1000 * time.Second)
	pending, err := f.bank.PendingInterest()
	require.NoError(t, err)
	require.Equal(t, "1000000000000", pending.String())
	require.NoError(t, f.bank.Accrue())
	require.Equal(t, "1000001000000000000", f.debt(t, 1))
	reserve, err := f.bank.Reserve()
	require.NoError(t, err)
	require.Equal(t, "100000000000", reserve.String())

	require.ErrorIs(t, f.bank.WithdrawReserve(bob, bob, big.NewInt(1)), nativecommon.ErrNotOwner)
	require.NoError(t, f.bank.WithdrawReserve(deployer, eve, big.NewInt(40_000_000_000)))
	require.Equal(t, "40000000000", f.balance(t, eve).String())
	require.ErrorIs(t, f.bank.ReduceReserve(deployer, big.NewInt(60_000_000_001)), ErrInsufficientReserve)
	require.NoError(t, f.bank.ReduceReserve(deployer, big.NewInt(60_000_000_000)))
	reserve, err = f.bank.Reserve()
	require.NoError(t, err)
	require.Zero(t, reserve.Sign())
	require.Len(t, rec.OfType(events.TypeReserveWithdrawn), 1)
	require.Len(t, rec.OfType(events.TypeReserveReduced), 1)
	require.Len(t, rec.OfType(events.TypeInterestAccrued), 1)

	// A utilisation curve replaces the fixed rate.
	require.ErrorIs(t, f.bank.SetInterestModel(bob, ModelTripleSlope), nativecommon.ErrNotOwner)
	require.Error(t, f.bank.SetInterestModel(deployer, "kinked"))
	require.NoError(t, f.bank.SetInterestModel(deployer, ModelTripleSlope))
	*f.clock = f.clock.Add(100 * time.Second)
	view, err := f.bank.Pool()
	require.NoError(t, err)
	rate, err := TripleSlopeModel{}.RatePerSecond(view.GlobalDebtValue, view.Held)
	require.NoError(t, err)
	want, err := AccruedInterest(rate, view.GlobalDebtValue, 100)
	require.NoError(t, err)
	pending, err = f.bank.PendingInterest()
	require.NoError(t, err)
	require.Equal(t, want.String(), pending.String())
	require.Equal(t, 1, pending.Sign())

	// The model is part of the stored parameters, so a restarted pool keeps it.
	restarted, err := NewBank(f.ledger, bankAt, "ETH", "ibETH", deployer, PoolConfig{})
	require.NoError(t, err)
	restarted.SetClock(func() time.Time { return *f.clock })
	cfg, err = restarted.Config()
	require.NoError(t, err)
	require.Equal(t, ModelTripleSlope, cfg.InterestModel)
	pending, err = restarted.PendingInterest()
	require.NoError(t, err)
	require.Equal(t, want.String(), pending.String())

	// And a failed transaction takes the switch back with it.
	err = f.attempt(func() error {
		if err := f.bank.SetInterestModel(deployer, ModelFixed); err != nil {
			return err
		}
		return ErrInvalidAmount
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
	cfg, err = f.bank.Config()
	require.NoError(t, err)
	require.Equal(t, ModelTripleSlope, cfg.InterestModel)
}

func TestPausedPoolRejectsEntryPoints(t *testing.T) {
	f := newStubFixture(t)
	_, err := f.work(alice, WorkRequest{Loan: ether(1)})
	require.NoError(t, err)

	f.pauses.Set(moduleName, true)
	_, err = f.bank.Deposit(bob, ether(1))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	_, err = f.bank.Withdraw(deployer, ether(1))
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	_, err = f.work(alice, WorkRequest{PositionID: 1})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	_, err = f.bank.Kill(bob, 1)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.ErrorIs(t, f.bank.Accrue(), nativecommon.ErrModulePaused)

	f.pauses.Set(moduleName, false)
	_, err = f.bank.Deposit(bob, ether(1))
	require.NoError(t, err)
}

func TestVaultRegistration(t *testing.T) {
	f := newStubFixture(t)
	other := &stubVault{ledger: f.ledger, addr: f.vault.addr}
	require.ErrorIs(t, f.bank.RegisterVault(deployer, other, VaultConfig{IsVault: true, WorkFactorBps: 1, KillFactorBps: 2}), ErrVaultAlreadyAttached)
	require.ErrorIs(t, f.bank.RegisterVault(bob, f.vault, VaultConfig{}), nativecommon.ErrNotOwner)
	require.ErrorIs(t, f.bank.SetVault(deployer, f.vault.addr, VaultConfig{IsVault: true, WorkFactorBps: 9000, KillFactorBps: 8000}), ErrBadFactors)
	cfg, err := f.bank.VaultConfig(f.vault.addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7000), cfg.WorkFactorBps)
	require.Equal(t, []common.Address{f.vault.addr}, f.bank.Vaults())
}
