package intent

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	UnitWei   = "wei"
	UnitGwei  = "gwei"
	UnitEther = "ether"
)

// ToWei converts any unit (specified by sourceUnit) to wei, the fraction below one wei is truncated.
func ToWei(sourceAmt decimal.Decimal, sourceUnit string) (*big.Int, error) {
	switch sourceUnit {
	case UnitWei:
		return sourceAmt.BigInt(), nil
	case UnitGwei:
		return sourceAmt.Shift(9).BigInt(), nil
	case UnitEther:
		return sourceAmt.Shift(18).BigInt(), nil
	default:
		return nil, fmt.Errorf("unrecognized unit %v", sourceUnit)
	}
}

// MustToWei is like ToWei but panics on an unknown unit.
func MustToWei(sourceAmt decimal.Decimal, sourceUnit string) *big.Int {
	v, err := ToWei(sourceAmt, sourceUnit)
	if err != nil {
		panic(err)
	}
	return v
}

// FromWei converts wei to other unit (specified by targetUnit).
func FromWei(amtInWei *big.Int, targetUnit string) (decimal.Decimal, error) {
	if amtInWei == nil {
		return decimal.Zero, nil
	}
	d := decimal.NewFromBigInt(amtInWei, 0)
	switch targetUnit {
	case UnitWei:
		return d, nil
	case UnitGwei:
		return d.Shift(-9), nil
	case UnitEther:
		return d.Shift(-18), nil
	default:
		return decimal.Zero, fmt.Errorf("unrecognized unit %v", targetUnit)
	}
}
