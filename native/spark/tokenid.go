package spark

import (
	"fmt"
	"math/big"
)

// TokenID packs an issue identifier and an edition identifier into a single
// 64-bit value: issue in the high 32 bits, edition in the low 32 bits. It is
// a dedicated value type so that raw integers from the outside world always
// pass through a range check before touching the ledger.
type TokenID uint64

// NewTokenID packs the supplied issue and edition identifiers.
func NewTokenID(issueID uint32, editionID uint32) TokenID {
	return TokenID(uint64(issueID)<<32 | uint64(editionID))
}

// TokenIDFromBig validates that a raw integer fits the 64-bit encoding and
// converts it. Values wider than 64 bits fail with ErrTokenIDOverflow.
func TokenIDFromBig(raw *big.Int) (TokenID, error) {
	if raw == nil || raw.Sign() < 0 || !raw.IsUint64() {
		return 0, ErrTokenIDOverflow
	}
	return TokenID(raw.Uint64()), nil
}

// IssueID returns the issue component of the identifier.
func (id TokenID) IssueID() uint32 {
	return uint32(id >> 32)
}

// EditionID returns the edition component of the identifier.
func (id TokenID) EditionID() uint32 {
	return uint32(id)
}

// Big returns the identifier as a big integer for wire surfaces.
func (id TokenID) Big() *big.Int {
	return new(big.Int).SetUint64(uint64(id))
}

// String renders the identifier in decimal, matching the wire format.
func (id TokenID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}
