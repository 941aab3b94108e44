package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPositionKilledAttributes(t *testing.T) {
	killer := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	evt := PositionKilled{
		PositionID: 7,
		Killer:     killer,
		Debt:       big.NewInt(100),
		Released:   big.NewInt(90),
		Bounty:     big.NewInt(9),
		BadDebt:    big.NewInt(19),
	}.Event()

	if evt.Type != TypePositionKilled {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	checks := map[string]string{
		"positionId": "7",
		"killer":     killer.Hex(),
		"owner":      "",
		"debt":       "100",
		"reserveCut": "0",
		"badDebt":    "19",
	}
	for key, want := range checks {
		if got := evt.Attr(key); got != want {
			t.Fatalf("unexpected %s: got %q want %q", key, got, want)
		}
	}
}

func TestDebtChangedType(t *testing.T) {
	if (DebtChanged{Added: true}).EventType() != TypeDebtAdded {
		t.Fatalf("added debt must use the added type")
	}
	if (DebtChanged{}).Event().Type != TypeDebtRemoved {
		t.Fatalf("removed debt must use the removed type")
	}
}

func TestBufferFlushAndDiscard(t *testing.T) {
	var buf Buffer
	rec := &Recorder{}

	buf.Emit(PoolDeposit{Amount: big.NewInt(1)})
	buf.Discard()
	if flushed := buf.Flush(rec); len(flushed) != 0 {
		t.Fatalf("discarded events were flushed: %d", len(flushed))
	}

	buf.Emit(PoolDeposit{Amount: big.NewInt(1)})
	buf.Emit(PoolWithdraw{Amount: big.NewInt(2)})
	buf.Flush(Fanout{rec, NoopEmitter{}})

	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("unexpected event count: got %d want 2", len(got))
	}
	if got[0].EventType() != TypePoolDeposit || got[1].EventType() != TypePoolWithdraw {
		t.Fatalf("events out of order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	if len(rec.OfType(TypePoolWithdraw)) != 1 {
		t.Fatalf("expected one withdraw event")
	}
}
