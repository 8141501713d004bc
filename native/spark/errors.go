package spark

import "errors"

var (
	ErrIssueNotFound      = errors.New("spark: issue does not exist")
	ErrEditionNotFound    = errors.New("spark: edition does not exist")
	ErrTokenIDOverflow    = errors.New("spark: token id does not fit in 64 bits")
	ErrValueOverflow      = errors.New("spark: value exceeds its storage width")
	ErrHashLength         = errors.New("spark: content hash must be 32 bytes")
	ErrInvalidRoyaltyFee  = errors.New("spark: royalty fee should be <= 100")
	ErrWrongPrice         = errors.New("spark: wrong price")
	ErrNoRemainShillTimes = errors.New("spark: no remaining shill times for this edition")
	ErrNotOwner           = errors.New("spark: caller is not the owner")
	ErrNotApprovedOrOwner = errors.New("spark: caller is not owner nor approved")
	ErrApprovalToOwner    = errors.New("spark: approval to current owner")
	ErrApproveToCaller    = errors.New("spark: approve to caller")
	ErrNDProtocol         = errors.New("spark: issue follows the ND protocol, only the root edition URI can be set")
	ErrTransferToZero     = errors.New("spark: transfer to the zero address")
	ErrInsufficientFunds  = errors.New("spark: insufficient balance")
	ErrHoldingsUnderflow  = errors.New("spark: holdings count underflow")
	ErrVaultUnderfunded   = errors.New("spark: vault underfunded")
	ErrNilState           = errors.New("spark: state not configured")
	ErrVaultNotSet        = errors.New("spark: vault not configured")
	ErrTokenLedgerNotSet  = errors.New("spark: token ledger not configured")
)
