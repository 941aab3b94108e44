package lending

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
	nativecommon "github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/common"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/strategy"
)

const moduleName = "lending"

// Vault is the leverage vault a position's capital is worked through.
// vault.Goblin implements it.
type Vault interface {
	Address() common.Address
	Work(caller common.Address, positionID uint64, user common.Address, debt *big.Int, params strategy.Params) (*big.Int, error)
	Liquidate(caller common.Address, positionID uint64) (*big.Int, error)
	Health(positionID uint64) (*big.Int, error)
	Shares(positionID uint64) (*big.Int, error)
}

// Bank is the lending pool. Depositors hold shares of everything the pool is
// owed plus what it holds, net of the protocol reserve. Borrowers draw loans
// into vault positions and owe debt shares of a growing global debt.
type Bank struct {
	nativecommon.Ownable

	ledger     nativecommon.Ledger
	address    common.Address
	baseAsset  string
	shareAsset string
	defaults   PoolConfig
	vaults     map[common.Address]Vault
	pauses     nativecommon.PauseView
	emitter    events.Emitter
	guard      nativecommon.ReentrancyGuard
	nowFn      func() time.Time
}

// NewBank creates a pool at address lending baseAsset and issuing shareAsset
// to depositors. cfg is used until the owner stores new parameters.
func NewBank(ledger nativecommon.Ledger, address common.Address, baseAsset, shareAsset string, owner common.Address, cfg PoolConfig) (*Bank, error) {
	if ledger == nil {
		return nil, fmt.Errorf("lending: ledger required")
	}
	if baseAsset == "" || shareAsset == "" || baseAsset == shareAsset {
		return nil, fmt.Errorf("lending: invalid assets %q/%q", baseAsset, shareAsset)
	}
	cfg = cfg.Clone()
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bank{
		Ownable:    nativecommon.NewOwnable(owner),
		ledger:     ledger,
		address:    address,
		baseAsset:  baseAsset,
		shareAsset: shareAsset,
		defaults:   cfg,
		vaults:     make(map[common.Address]Vault),
		emitter:    events.NoopEmitter{},
		nowFn:      time.Now,
	}, nil
}

func (b *Bank) SetPauses(p nativecommon.PauseView) {
	if b == nil {
		return
	}
	b.pauses = p
}

func (b *Bank) SetEmitter(emitter events.Emitter) {
	if b == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	b.emitter = emitter
}

// SetClock overrides the time source used for interest accrual.
func (b *Bank) SetClock(now func() time.Time) {
	if b == nil || now == nil {
		return
	}
	b.nowFn = now
}

func (b *Bank) Address() common.Address { return b.address }
func (b *Bank) BaseAsset() string { return b.baseAsset }
func (b *Bank) ShareAsset() string { return b.shareAsset }

func (b *Bank) now() uint64 {
	ts := b.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (b *Bank) emit(e events.Event) {
	if b.emitter != nil {
		b.emitter.Emit(e)
	}
}

func (b *Bank) loadState() (*PoolState, error) {
	st := &PoolState{}
	if _, err := b.ledger.KVGet(poolStateKey(b.address), st); err != nil {
		return nil, err
	}
	st.normalise()
	return st, nil
}

func (b *Bank) storeState(st *PoolState) error {
	return b.ledger.KVPut(poolStateKey(b.address), st)
}

func (b *Bank) loadConfig() (PoolConfig, error) {
	var cfg PoolConfig
	ok, err := b.ledger.KVGet(poolConfigKey(b.address), &cfg)
	if err != nil {
		return PoolConfig{}, err
	}
	if !ok {
		return b.defaults.Clone(), nil
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

func (b *Bank) loadVaultConfig(vault common.Address) (VaultConfig, error) {
	var cfg VaultConfig
	if _, err := b.ledger.KVGet(vaultConfigKey(b.address, vault), &cfg); err != nil {
		return VaultConfig{}, err
	}
	return cfg, nil
}

func (b *Bank) loadPosition(id uint64) (*Position, error) {
	if id == 0 {
		return nil, ErrUnknownPosition
	}
	pos := &Position{}
	ok, err := b.ledger.KVGet(positionKey(b.address, id), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPosition
	}
	pos.DebtShare = nativecommon.Clone(pos.DebtShare)
	return pos, nil
}

func (b *Bank) storePosition(pos *Position) error {
	return b.ledger.KVPut(positionKey(b.address, pos.ID), pos)
}

// settlePosition stores pos, or drops it once it owes nothing and its vault
// holds no stake for it.
func (b *Bank) settlePosition(vault Vault, pos *Position, debt *big.Int) error {
	if debt.Sign() == 0 {
		stake, err := vault.Shares(pos.ID)
		if err != nil {
			return err
		}
		if stake.Sign() == 0 {
			return b.ledger.KVDelete(positionKey(b.address, pos.ID))
		}
	}
	return b.storePosition(pos)
}

func (b *Bank) held() (*big.Int, error) {
	return b.ledger.Balance(b.address, b.baseAsset)
}

func (b *Bank) pendingInterest(st *PoolState, cfg PoolConfig, now uint64) (*big.Int, error) {
	if st.LastAccrual == 0 || now <= st.LastAccrual {
		return big.NewInt(0), nil
	}
	held, err := b.held()
	if err != nil {
		return nil, err
	}
	model, err := cfg.Model()
	if err != nil {
		return nil, err
	}
	rate, err := model.RatePerSecond(st.GlobalDebtValue, held)
	if err != nil {
		return nil, err
	}
	return AccruedInterest(rate, st.GlobalDebtValue, now-st.LastAccrual)
}

// accrue adds interest for the time since the last accrual to the global
// debt and skims the reserve share. It must run before any other mutation of
// an entry point.
func (b *Bank) accrue(st *PoolState, cfg PoolConfig) error {
	now := b.now()
	if st.LastAccrual == 0 {
		st.LastAccrual = now
		return nil
	}
	if now <= st.LastAccrual {
		return nil
	}
	interest, err := b.pendingInterest(st, cfg, now)
	if err != nil {
		return err
	}
	elapsed := now - st.LastAccrual
	st.LastAccrual = now
	if interest.Sign() == 0 {
		return nil
	}
	toReserve, err := nativecommon.Bps(interest, cfg.ReservePoolBps)
	if err != nil {
		return err
	}
	if st.Reserve, err = nativecommon.Add(st.Reserve, toReserve); err != nil {
		return err
	}
	if st.GlobalDebtValue, err = nativecommon.Add(st.GlobalDebtValue, interest); err != nil {
		return err
	}
	b.emit(events.InterestAccrued{
		Elapsed:    elapsed,
		Interest:   interest,
		ToReserve:  toReserve,
		GlobalDebt: nativecommon.Clone(st.GlobalDebtValue),
	})
	return nil
}

// netAssets is the value backing depositor shares: held base asset plus
// outstanding debt minus the protocol reserve.
func (b *Bank) netAssets(st *PoolState) (*big.Int, error) {
	held, err := b.held()
	if err != nil {
		return nil, err
	}
	total, err := nativecommon.Add(held, st.GlobalDebtValue)
	if err != nil {
		return nil, err
	}
	return nativecommon.Sub(total, st.Reserve)
}

func debtShareToValue(st *PoolState, share *big.Int) (*big.Int, error) {
	if st.GlobalDebtShare.Sign() == 0 {
		return nativecommon.Clone(share), nil
	}
	return nativecommon.MulDiv(share, st.GlobalDebtValue, st.GlobalDebtShare)
}

func debtValueToShare(st *PoolState, value *big.Int) (*big.Int, error) {
	if st.GlobalDebtShare.Sign() == 0 || st.GlobalDebtValue.Sign() == 0 {
		return nativecommon.Clone(value), nil
	}
	return nativecommon.MulDiv(value, st.GlobalDebtShare, st.GlobalDebtValue)
}

// addDebt attaches value worth of debt shares to the position.
func (b *Bank) addDebt(st *PoolState, pos *Position, value *big.Int) error {
	share, err := debtValueToShare(st, value)
	if err != nil {
		return err
	}
	if pos.DebtShare, err = nativecommon.Add(pos.DebtShare, share); err != nil {
		return err
	}
	if st.GlobalDebtShare, err = nativecommon.Add(st.GlobalDebtShare, share); err != nil {
		return err
	}
	if st.GlobalDebtValue, err = nativecommon.Add(st.GlobalDebtValue, value); err != nil {
		return err
	}
	b.emit(events.DebtChanged{PositionID: pos.ID, DebtShare: share, DebtValue: nativecommon.Clone(value), Added: true})
	return nil
}

// removeDebt detaches all of the position's debt and returns its value.
func (b *Bank) removeDebt(st *PoolState, pos *Position) (*big.Int, error) {
	share := nativecommon.Clone(pos.DebtShare)
	if share.Sign() == 0 {
		return big.NewInt(0), nil
	}
	value, err := debtShareToValue(st, share)
	if err != nil {
		return nil, err
	}
	if st.GlobalDebtShare, err = nativecommon.Sub(st.GlobalDebtShare, share); err != nil {
		return nil, err
	}
	if st.GlobalDebtValue, err = nativecommon.Sub(st.GlobalDebtValue, value); err != nil {
		return nil, err
	}
	pos.DebtShare = big.NewInt(0)
	b.emit(events.DebtChanged{PositionID: pos.ID, DebtShare: share, DebtValue: value})
	return value, nil
}

// Accrue brings interest up to date without any other effect.
func (b *Bank) Accrue() error {
	if err := nativecommon.Guard(b.pauses, moduleName); err != nil {
		return err
	}
	release, err := b.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	st, err := b.loadState()
	if err != nil {
		return err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return err
	}
	if err := b.accrue(st, cfg); err != nil {
		return err
	}
	return b.storeState(st)
}

// Deposit moves amount of base asset from the caller into the pool and mints
// pool shares for it. A zero amount only accrues interest.
func (b *Bank) Deposit(caller common.Address, amount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(b.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := b.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	amount = nativecommon.Clone(amount)
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := b.accrue(st, cfg); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return big.NewInt(0), b.storeState(st)
	}
	total, err := b.netAssets(st)
	if err != nil {
		return nil, err
	}
	supply, err := b.ledger.TotalSupply(b.shareAsset)
	if err != nil {
		return nil, err
	}
	shares := nativecommon.Clone(amount)
	if total.Sign() > 0 && supply.Sign() > 0 {
		if shares, err = nativecommon.MulDiv(amount, supply, total); err != nil {
			return nil, err
		}
	}
	if err := b.storeState(st); err != nil {
		return nil, err
	}
	if err := b.ledger.Transfer(caller, b.address, b.baseAsset, amount); err != nil {
		return nil, err
	}
	if err := b.ledger.Mint(caller, b.shareAsset, shares); err != nil {
		return nil, err
	}
	b.emit(events.PoolDeposit{Account: caller, Amount: amount, Shares: shares})
	return shares, nil
}

// Withdraw burns the caller's shares and pays out their base-asset value.
func (b *Bank) Withdraw(caller common.Address, shares *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(b.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := b.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	shares = nativecommon.Clone(shares)
	if shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := b.accrue(st, cfg); err != nil {
		return nil, err
	}
	owned, err := b.ledger.Balance(caller, b.shareAsset)
	if err != nil {
		return nil, err
	}
	if owned.Cmp(shares) < 0 {
		return nil, ErrInsufficientShares
	}
	total, err := b.netAssets(st)
	if err != nil {
		return nil, err
	}
	supply, err := b.ledger.TotalSupply(b.shareAsset)
	if err != nil {
		return nil, err
	}
	amount, err := nativecommon.MulDiv(shares, total, supply)
	if err != nil {
		return nil, err
	}
	held, err := b.held()
	if err != nil {
		return nil, err
	}
	if held.Cmp(amount) < 0 {
		return nil, ErrInsufficientETH
	}
	if err := b.storeState(st); err != nil {
		return nil, err
	}
	if err := b.ledger.Burn(caller, b.shareAsset, shares); err != nil {
		return nil, err
	}
	if err := b.ledger.Transfer(b.address, caller, b.baseAsset, amount); err != nil {
		return nil, err
	}
	b.emit(events.PoolWithdraw{Account: caller, Shares: shares, Amount: amount})
	return amount, nil
}

// Work opens or adjusts a position. The loan plus the caller's principal go
// to the vault, which runs the requested strategy. Base asset coming back
// first repays debt, up to MaxReturn, and the rest goes to the caller.
func (b *Bank) Work(caller common.Address, req WorkRequest) (*WorkResult, error) {
	if err := nativecommon.Guard(b.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := b.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	loan := nativecommon.Clone(req.Loan)
	principal := nativecommon.Clone(req.Principal)
	if loan.Sign() < 0 || principal.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := b.accrue(st, cfg); err != nil {
		return nil, err
	}

	var pos *Position
	if req.PositionID == 0 {
		pos = &Position{ID: st.NextPositionID, Owner: caller, Vault: req.Vault, DebtShare: big.NewInt(0)}
	} else {
		if pos, err = b.loadPosition(req.PositionID); err != nil {
			return nil, err
		}
		if pos.Vault != req.Vault {
			return nil, ErrBadPositionVault
		}
		if pos.Owner != caller {
			return nil, ErrNotPositionOwner
		}
	}
	vcfg, err := b.loadVaultConfig(req.Vault)
	if err != nil {
		return nil, err
	}
	vault, ok := b.vaults[req.Vault]
	if !ok || !vcfg.IsVault {
		return nil, ErrUnknownVault
	}
	if loan.Sign() > 0 && !vcfg.AcceptsDebt {
		return nil, ErrDebtRejected
	}
	held, err := b.held()
	if err != nil {
		return nil, err
	}
	if loan.Cmp(held) > 0 {
		return nil, ErrInsufficientETH
	}

	if req.PositionID == 0 {
		st.NextPositionID++
	}
	prevDebt, err := b.removeDebt(st, pos)
	if err != nil {
		return nil, err
	}
	debt, err := nativecommon.Add(prevDebt, loan)
	if err != nil {
		return nil, err
	}
	if err := b.storeState(st); err != nil {
		return nil, err
	}
	if err := b.storePosition(pos); err != nil {
		return nil, err
	}
	if principal.Sign() > 0 {
		if err := b.ledger.Transfer(caller, b.address, b.baseAsset, principal); err != nil {
			return nil, err
		}
	}
	send, err := nativecommon.Add(loan, principal)
	if err != nil {
		return nil, err
	}
	if err := b.ledger.Transfer(b.address, vault.Address(), b.baseAsset, send); err != nil {
		return nil, err
	}
	before, err := b.held()
	if err != nil {
		return nil, err
	}
	if _, err := vault.Work(b.address, pos.ID, caller, debt, req.Params); err != nil {
		return nil, err
	}
	after, err := b.held()
	if err != nil {
		return nil, err
	}
	back, err := nativecommon.Sub(after, before)
	if err != nil {
		return nil, err
	}

	lessDebt := nativecommon.Min(debt, back)
	if req.MaxReturn != nil {
		lessDebt = nativecommon.Min(lessDebt, req.MaxReturn)
	}
	if debt, err = nativecommon.Sub(debt, lessDebt); err != nil {
		return nil, err
	}
	if debt.Sign() > 0 {
		if debt.Cmp(cfg.MinDebtSize) < 0 {
			return nil, ErrDebtTooSmall
		}
		if debt.Cmp(prevDebt) >= 0 {
			if err := b.checkWorkFactor(vault, vcfg, pos.ID, debt); err != nil {
				return nil, err
			}
		}
		if err := b.addDebt(st, pos, debt); err != nil {
			return nil, err
		}
	}
	payout, err := nativecommon.Sub(back, lessDebt)
	if err != nil {
		return nil, err
	}
	if req.MinReturn != nil && payout.Cmp(req.MinReturn) < 0 {
		return nil, ErrSlippageExceeded
	}
	if err := b.storeState(st); err != nil {
		return nil, err
	}
	if err := b.settlePosition(vault, pos, debt); err != nil {
		return nil, err
	}
	if payout.Sign() > 0 {
		if err := b.ledger.Transfer(b.address, caller, b.baseAsset, payout); err != nil {
			return nil, err
		}
	}
	b.emit(events.PositionWork{
		PositionID: pos.ID,
		Owner:      pos.Owner,
		Vault:      pos.Vault,
		Loan:       loan,
		Principal:  principal,
		Returned:   back,
		Repaid:     lessDebt,
		Debt:       debt,
	})
	return &WorkResult{PositionID: pos.ID, Returned: back, Repaid: lessDebt, Payout: payout, Debt: debt}, nil
}

// checkWorkFactor requires debt <= health * workFactor / 10000.
func (b *Bank) checkWorkFactor(vault Vault, vcfg VaultConfig, id uint64, debt *big.Int) error {
	health, err := vault.Health(id)
	if err != nil {
		return err
	}
	lhs, err := nativecommon.Mul(health, new(big.Int).SetUint64(vcfg.WorkFactorBps))
	if err != nil {
		return err
	}
	rhs, err := nativecommon.Mul(debt, big.NewInt(nativecommon.BpsDenominator))
	if err != nil {
		return err
	}
	if lhs.Cmp(rhs) < 0 {
		return ErrBadWorkFactor
	}
	return nil
}

// killable reports whether health * killFactor < debt * 10000.
func killable(health, debt *big.Int, killFactorBps uint64) (bool, error) {
	lhs, err := nativecommon.Mul(health, new(big.Int).SetUint64(killFactorBps))
	if err != nil {
		return false, err
	}
	rhs, err := nativecommon.Mul(debt, big.NewInt(nativecommon.BpsDenominator))
	if err != nil {
		return false, err
	}
	return lhs.Cmp(rhs) < 0, nil
}

// Kill liquidates an unhealthy position. The caller earns the kill bounty out
// of the released base asset, the rest repays the debt and any surplus is
// split between the reserve and the position owner. A shortfall is bad debt
// borne by depositors.
func (b *Bank) Kill(caller common.Address, id uint64) (*KillResult, error) {
	if err := nativecommon.Guard(b.pauses, moduleName); err != nil {
		return nil, err
	}
	release, err := b.guard.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := b.loadState()
	if err != nil {
		return nil, err
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := b.accrue(st, cfg); err != nil {
		return nil, err
	}
	pos, err := b.loadPosition(id)
	if err != nil {
		return nil, err
	}
	if pos.DebtShare.Sign() == 0 {
		return nil, ErrNoDebt
	}
	vault, ok := b.vaults[pos.Vault]
	if !ok {
		return nil, ErrUnknownVault
	}
	vcfg, err := b.loadVaultConfig(pos.Vault)
	if err != nil {
		return nil, err
	}
	debt, err := debtShareToValue(st, pos.DebtShare)
	if err != nil {
		return nil, err
	}
	health, err := vault.Health(id)
	if err != nil {
		return nil, err
	}
	canKill, err := killable(health, debt, vcfg.KillFactorBps)
	if err != nil {
		return nil, err
	}
	if !canKill {
		return nil, ErrCannotLiquidate
	}

	if debt, err = b.removeDebt(st, pos); err != nil {
		return nil, err
	}
	if err := b.ledger.KVDelete(positionKey(b.address, id)); err != nil {
		return nil, err
	}
	if err := b.storeState(st); err != nil {
		return nil, err
	}
	before, err := b.held()
	if err != nil {
		return nil, err
	}
	if _, err := vault.Liquidate(b.address, id); err != nil {
		return nil, err
	}
	after, err := b.held()
	if err != nil {
		return nil, err
	}
	released, err := nativecommon.Sub(after, before)
	if err != nil {
		return nil, err
	}
	res, err := splitProceeds(released, debt, cfg)
	if err != nil {
		return nil, err
	}
	if st.Reserve, err = nativecommon.Add(st.Reserve, res.ReserveCut); err != nil {
		return nil, err
	}
	if err := b.storeState(st); err != nil {
		return nil, err
	}
	if res.Bounty.Sign() > 0 {
		if err := b.ledger.Transfer(b.address, caller, b.baseAsset, res.Bounty); err != nil {
			return nil, err
		}
	}
	if res.Left.Sign() > 0 {
		if err := b.ledger.Transfer(b.address, pos.Owner, b.baseAsset, res.Left); err != nil {
			return nil, err
		}
	}
	b.emit(events.PositionKilled{
		PositionID: id,
		Killer:     caller,
		Owner:      pos.Owner,
		Debt:       res.Debt,
		Released:   res.Released,
		Bounty:     res.Bounty,
		ReserveCut: res.ReserveCut,
		Left:       res.Left,
		BadDebt:    res.BadDebt,
	})
	return res, nil
}

func splitProceeds(released, debt *big.Int, cfg PoolConfig) (*KillResult, error) {
	bounty, err := nativecommon.Bps(released, cfg.KillBountyBps)
	if err != nil {
		return nil, err
	}
	reserveCut := new(big.Int)
	if released.Cmp(debt) > 0 {
		if reserveCut, err = nativecommon.Bps(new(big.Int).Sub(released, debt), cfg.ReservePoolBps); err != nil {
			return nil, err
		}
	}
	rest, err := nativecommon.Sub(released, bounty)
	if err != nil {
		return nil, err
	}
	// The cut never eats into what the killer is owed.
	reserveCut = nativecommon.Min(reserveCut, rest)
	if rest, err = nativecommon.Sub(rest, reserveCut); err != nil {
		return nil, err
	}
	repaid := nativecommon.Min(rest, debt)
	left, err := nativecommon.Sub(rest, repaid)
	if err != nil {
		return nil, err
	}
	badDebt, err := nativecommon.Sub(debt, repaid)
	if err != nil {
		return nil, err
	}
	return &KillResult{
		Debt:       nativecommon.Clone(debt),
		Released:   nativecommon.Clone(released),
		Bounty:     bounty,
		ReserveCut: reserveCut,
		Left:       left,
		BadDebt:    badDebt,
	}, nil
}

// Vaults lists the registered vault addresses in ascending order.
func (b *Bank) Vaults() []common.Address {
	out := make([]common.Address, 0, len(b.vaults))
	for addr := range b.vaults {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
