package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/storage"
)

type record struct {
	Owner common.Address
	Debt  *big.Int
	Open  bool
}

func TestKVReadWrite(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	key := []byte("lending/position/1")
	in := record{Owner: common.HexToAddress("0x01"), Debt: big.NewInt(42), Open: true}
	if err := mgr.KVPut(key, in); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out record
	ok, err := mgr.KVGet(key, &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Owner != in.Owner || out.Debt.Cmp(in.Debt) != 0 || !out.Open {
		t.Fatalf("unexpected record: %+v", out)
	}

	if err := mgr.KVDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, err := mgr.KVGet(key, &out); err != nil || ok {
		t.Fatalf("expected missing key after delete: ok=%v err=%v", ok, err)
	}
	if _, err := mgr.KVGet(nil, &out); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestTransferMintBurn(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0")

	if err := mgr.Mint(alice, "ETH", big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := mgr.Transfer(alice, bob, "ETH", big.NewInt(30)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := mgr.Transfer(bob, alice, "ETH", big.NewInt(31)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := mgr.Transfer(bob, alice, "ETH", big.NewInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if err := mgr.Burn(bob, "ETH", big.NewInt(10)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	aliceBal, _ := mgr.Balance(alice, "ETH")
	bobBal, _ := mgr.Balance(bob, "ETH")
	supply, _ := mgr.TotalSupply("ETH")
	if aliceBal.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("unexpected alice balance: got %s want 70", aliceBal)
	}
	if bobBal.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("unexpected bob balance: got %s want 20", bobBal)
	}
	if supply.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("unexpected supply: got %s want 90", supply)
	}
}

func TestAssetsAreCaseSensitive(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	alice := common.HexToAddress("0xa1")

	if err := mgr.Mint(alice, "ETH", big.NewInt(5)); err != nil {
		t.Fatalf("mint ETH: %v", err)
	}
	if err := mgr.Mint(alice, "ibETH", big.NewInt(3)); err != nil {
		t.Fatalf("mint ibETH: %v", err)
	}
	eth, _ := mgr.Balance(alice, "ETH")
	ib, _ := mgr.Balance(alice, "ibETH")
	if eth.Int64() != 5 || ib.Int64() != 3 {
		t.Fatalf("balances leaked across assets: ETH=%s ibETH=%s", eth, ib)
	}
	if supply, _ := mgr.TotalSupply("IBETH"); supply.Sign() != 0 {
		t.Fatalf("unexpected IBETH supply %s", supply)
	}
	if _, err := mgr.Balance(alice, " "); err == nil {
		t.Fatalf("expected blank asset to be rejected")
	}
}

func TestSnapshotRevertAndCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	alice := common.HexToAddress("0xa1")

	if err := mgr.Mint(alice, "ETH", big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	snap := mgr.Snapshot()
	if err := mgr.Mint(alice, "ETH", big.NewInt(7)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := mgr.KVPut([]byte("scratch"), uint64(9)); err != nil {
		t.Fatalf("put: %v", err)
	}
	mgr.RevertToSnapshot(snap)

	bal, _ := mgr.Balance(alice, "ETH")
	if bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected balance after revert: got %s want 5", bal)
	}
	if ok, _ := mgr.KVGet([]byte("scratch"), nil); ok {
		t.Fatalf("scratch key survived revert")
	}
	if db.Len() != 0 {
		t.Fatalf("uncommitted writes reached the database")
	}

	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	reloaded := NewManager(db)
	bal, _ = reloaded.Balance(alice, "ETH")
	if bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected committed balance: got %s want 5", bal)
	}

	if err := reloaded.Burn(alice, "ETH", big.NewInt(5)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	reloaded.Discard()
	bal, _ = reloaded.Balance(alice, "ETH")
	if bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("discard did not drop pending burn: got %s", bal)
	}
}
