package spark

import (
	"errors"
	"math/big"
	"testing"
)

func TestCalculateFee(t *testing.T) {
	cases := []struct {
		amount  int64
		percent uint8
		want    int64
	}{
		{100, 10, 10},
		{99, 10, 9},
		{98, 10, 9},
		{1, 10, 0},
		{100, 0, 0},
		{0, 50, 0},
		{81, 10, 8},
	}
	for _, tc := range cases {
		got := calculateFee(big.NewInt(tc.amount), tc.percent)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("fee(%d, %d) = %s, want %d", tc.amount, tc.percent, got, tc.want)
		}
	}
	if got := calculateFee(nil, 10); got.Sign() != 0 {
		t.Fatalf("fee(nil) = %s", got)
	}
}

func TestDecayPrice(t *testing.T) {
	cases := []struct {
		price int64
		ratio uint8
		want  int64
	}{
		{100, 90, 90},
		{90, 90, 81},
		{81, 90, 72},
		{1, 90, 0},
		{0, 90, 0},
		{100, 100, 100},
	}
	for _, tc := range cases {
		got := decayPrice(big.NewInt(tc.price), tc.ratio)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("decay(%d, %d) = %s, want %d", tc.price, tc.ratio, got, tc.want)
		}
	}
}

func TestCheckPriceWidth(t *testing.T) {
	if err := checkPriceWidth(big.NewInt(0)); err != nil {
		t.Fatalf("zero price: %v", err)
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := checkPriceWidth(max); err != nil {
		t.Fatalf("max 256-bit price: %v", err)
	}
	over := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := checkPriceWidth(over); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("257-bit price: got %v, want ErrValueOverflow", err)
	}
	if err := checkPriceWidth(big.NewInt(-1)); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("negative price: got %v, want ErrValueOverflow", err)
	}
	if err := checkPriceWidth(nil); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("nil price: got %v, want ErrValueOverflow", err)
	}
}
