package spark

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Issue holds the immutable publish parameters of a published work plus the
// running count of editions minted under it. The payment token address is
// zero for native-currency issues.
type Issue struct {
	ID             uint32         `json:"id"`
	Publisher      common.Address `json:"publisher"`
	RoyaltyFee     uint8          `json:"royaltyFee"`
	ShillTimes     uint16         `json:"shillTimes"`
	FirstSellPrice *big.Int       `json:"firstSellPrice"`
	ContentHash    common.Hash    `json:"contentHash"`
	PaymentToken   common.Address `json:"paymentToken"`
	IsFree         bool           `json:"isFree"`
	IsNC           bool           `json:"isNC"`
	IsND           bool           `json:"isND"`
	TotalAmount    uint32         `json:"totalAmount"`
}

// RootTokenID returns the identifier of the issue's root edition.
func (i *Issue) RootTokenID() TokenID {
	return NewTokenID(i.ID, 1)
}

// Clone returns a deep copy of the issue.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	clone := *i
	if i.FirstSellPrice != nil {
		clone.FirstSellPrice = new(big.Int).Set(i.FirstSellPrice)
	}
	return &clone
}

// Edition is one minted token instance. Editions form a forest keyed by
// TokenID: every edition carries a father back-reference, and fathers are
// always allocated before their children, so the structure is acyclic by
// construction. Editions are never destroyed.
//
// Profit is the gross pool accrued against this edition. Protocol fee and
// royalty are resolved lazily when the pool is claimed; GetProfitByNFTID
// projects the claimable amount.
type Edition struct {
	TokenID          TokenID        `json:"tokenId"`
	Owner            common.Address `json:"owner"`
	FatherID         TokenID        `json:"fatherId"`
	Depth            uint32         `json:"depth"`
	RemainShillTimes uint16         `json:"remainShillTimes"`
	ShillPrice       *big.Int       `json:"shillPrice"`
	Profit           *big.Int       `json:"profit"`
	TransferPrice    *big.Int       `json:"transferPrice"`
	Approved         common.Address `json:"approved"`
	ContentHash      common.Hash    `json:"contentHash"`
}

// IsRoot reports whether this is the first edition of its issue.
func (e *Edition) IsRoot() bool {
	return e.TokenID.EditionID() == 1
}

// Clone returns a deep copy of the edition.
func (e *Edition) Clone() *Edition {
	if e == nil {
		return nil
	}
	clone := *e
	if e.ShillPrice != nil {
		clone.ShillPrice = new(big.Int).Set(e.ShillPrice)
	}
	if e.Profit != nil {
		clone.Profit = new(big.Int).Set(e.Profit)
	}
	if e.TransferPrice != nil {
		clone.TransferPrice = new(big.Int).Set(e.TransferPrice)
	}
	return &clone
}
