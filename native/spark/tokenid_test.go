package spark

import (
	"errors"
	"math/big"
	"testing"
)

func TestTokenIDPacking(t *testing.T) {
	id := NewTokenID(1, 1)
	if uint64(id) != 0x100000001 {
		t.Fatalf("packed id = %#x, want 0x100000001", uint64(id))
	}
	if id.IssueID() != 1 || id.EditionID() != 1 {
		t.Fatalf("unpacked = (%d, %d)", id.IssueID(), id.EditionID())
	}

	id = NewTokenID(0xdeadbeef, 0x12345678)
	if id.IssueID() != 0xdeadbeef || id.EditionID() != 0x12345678 {
		t.Fatalf("unpacked = (%#x, %#x)", id.IssueID(), id.EditionID())
	}
}

func TestTokenIDFromBig(t *testing.T) {
	id, err := TokenIDFromBig(big.NewInt(0x100000001))
	if err != nil {
		t.Fatalf("from big: %v", err)
	}
	if id != NewTokenID(1, 1) {
		t.Fatalf("id = %s", id)
	}

	wide, _ := new(big.Int).SetString("1234567890123456789012", 16)
	if _, err := TokenIDFromBig(wide); !errors.Is(err, ErrTokenIDOverflow) {
		t.Fatalf("wide id: got %v, want ErrTokenIDOverflow", err)
	}
	if _, err := TokenIDFromBig(big.NewInt(-1)); !errors.Is(err, ErrTokenIDOverflow) {
		t.Fatalf("negative id: got %v, want ErrTokenIDOverflow", err)
	}
	if _, err := TokenIDFromBig(nil); !errors.Is(err, ErrTokenIDOverflow) {
		t.Fatalf("nil id: got %v, want ErrTokenIDOverflow", err)
	}
}
