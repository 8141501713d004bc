package types

import "math/big"

// Account tracks the native-currency balance held against an address. The
// ledger moves value between accounts only through the spark engine, so the
// nonce is purely informational for callers that batch submissions.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return &clone
}
