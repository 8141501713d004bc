package spark

import (
	"math/big"

	"github.com/holiman/uint256"
)

var oneHundred = big.NewInt(100)

// calculateFee returns floor(amount * percent / 100). The retained remainder
// after subtracting the fee is therefore the ceiling of the complementary
// share.
func calculateFee(amount *big.Int, percent uint8) *big.Int {
	if amount == nil || amount.Sign() <= 0 || percent == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(percent)))
	return fee.Div(fee, oneHundred)
}

// decayPrice derives a child edition's shill price from its father's:
// floor(price * lossRatio / 100). The result is fixed at mint time.
func decayPrice(price *big.Int, lossRatio uint8) *big.Int {
	if price == nil || price.Sign() <= 0 {
		return big.NewInt(0)
	}
	next := new(big.Int).Mul(price, big.NewInt(int64(lossRatio)))
	return next.Div(next, oneHundred)
}

// checkPriceWidth rejects prices that do not fit the 256-bit payment width.
func checkPriceWidth(price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return ErrValueOverflow
	}
	if _, overflow := uint256.FromBig(price); overflow {
		return ErrValueOverflow
	}
	return nil
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
