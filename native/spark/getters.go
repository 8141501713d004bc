package spark

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"sparkledger/core/types"
)

// OwnerOf returns the current owner of the edition.
func (e *Engine) OwnerOf(id TokenID) (common.Address, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return common.Address{}, err
	}
	return edition.Owner, nil
}

// BalanceOf returns how many editions the address currently holds.
func (e *Engine) BalanceOf(owner common.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.HoldingCountGet(owner)
}

// GetApproved returns the single-edition approval, zero when unset.
func (e *Engine) GetApproved(id TokenID) (common.Address, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return common.Address{}, err
	}
	return edition.Approved, nil
}

// IsApprovedForAll reports whether operator may act for every edition owner
// holds.
func (e *Engine) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.OperatorApprovalGet(owner, operator)
}

// GetShillPriceByNFTID returns the price a shill against this edition costs.
func (e *Engine) GetShillPriceByNFTID(id TokenID) (*big.Int, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return nil, err
	}
	return newBigInt(edition.ShillPrice), nil
}

// GetRemainShillTimesByNFTID returns the edition's remaining shill quota.
func (e *Engine) GetRemainShillTimesByNFTID(id TokenID) (uint16, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return 0, err
	}
	return edition.RemainShillTimes, nil
}

// GetShillTimesByIssueID returns the per-edition shill quota of the issue.
func (e *Engine) GetShillTimesByIssueID(issueID uint32) (uint16, error) {
	issue, err := e.getIssue(issueID)
	if err != nil {
		return 0, err
	}
	return issue.ShillTimes, nil
}

// GetShillTimesByNFTID returns the per-edition shill quota of the edition's
// issue.
func (e *Engine) GetShillTimesByNFTID(id TokenID) (uint16, error) {
	if _, err := e.getEdition(id); err != nil {
		return 0, err
	}
	return e.GetShillTimesByIssueID(id.IssueID())
}

// GetFatherByNFTID returns the edition's father identifier. The root edition
// is its own father.
func (e *Engine) GetFatherByNFTID(id TokenID) (TokenID, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return 0, err
	}
	return edition.FatherID, nil
}

// GetProfitByNFTID projects what a claim of the edition's pool would pay its
// owner right now: the gross pool less the protocol fee, less the royalty
// share for non-root editions. The stored pool is untouched.
func (e *Engine) GetProfitByNFTID(id TokenID) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	edition, issue, err := e.resolveEditionAndIssue(e.state, id)
	if err != nil {
		return nil, err
	}
	amount := newBigInt(edition.Profit)
	amount = amount.Sub(amount, calculateFee(amount, e.daoFee))
	if !edition.IsRoot() {
		amount = amount.Sub(amount, calculateFee(amount, issue.RoyaltyFee))
	}
	return amount, nil
}

// GetDepthByNFTID returns the edition's distance from the issue root.
func (e *Engine) GetDepthByNFTID(id TokenID) (uint32, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return 0, err
	}
	return edition.Depth, nil
}

// GetEditionIDByNFTID returns the low half of the token identifier.
func (e *Engine) GetEditionIDByNFTID(id TokenID) (uint32, error) {
	if _, err := e.getEdition(id); err != nil {
		return 0, err
	}
	return id.EditionID(), nil
}

// GetRoyaltyFeeByIssueID returns the issue's royalty percentage.
func (e *Engine) GetRoyaltyFeeByIssueID(issueID uint32) (uint8, error) {
	issue, err := e.getIssue(issueID)
	if err != nil {
		return 0, err
	}
	return issue.RoyaltyFee, nil
}

// GetRoyaltyFeeByNFTID returns the royalty percentage of the edition's issue.
func (e *Engine) GetRoyaltyFeeByNFTID(id TokenID) (uint8, error) {
	if _, err := e.getEdition(id); err != nil {
		return 0, err
	}
	return e.GetRoyaltyFeeByIssueID(id.IssueID())
}

// GetTotalAmountByIssueID returns how many editions exist under the issue.
func (e *Engine) GetTotalAmountByIssueID(issueID uint32) (uint32, error) {
	issue, err := e.getIssue(issueID)
	if err != nil {
		return 0, err
	}
	return issue.TotalAmount, nil
}

// GetTransferPriceByNFTID returns the edition's listed resale price, zero
// when unlisted.
func (e *Engine) GetTransferPriceByNFTID(id TokenID) (*big.Int, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return nil, err
	}
	return newBigInt(edition.TransferPrice), nil
}

// GetIssue returns a copy of the issue record.
func (e *Engine) GetIssue(issueID uint32) (*Issue, error) {
	issue, err := e.getIssue(issueID)
	if err != nil {
		return nil, err
	}
	return issue.Clone(), nil
}

// GetEdition returns a copy of the edition record.
func (e *Engine) GetEdition(id TokenID) (*Edition, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return nil, err
	}
	return edition.Clone(), nil
}

// GetAccount returns a copy of the native-currency account record. Unknown
// addresses resolve to an empty account.
func (e *Engine) GetAccount(addr common.Address) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return ensureAccount(account), nil
}

// CreditAccount stores the account record directly. It backs faucet and test
// flows; regular value movement goes through payments.
func (e *Engine) CreditAccount(addr common.Address, account *types.Account) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return e.state.PutAccount(addr, ensureAccount(account))
}

// TokenURI resolves the edition's content hash through the configured
// metadata resolver.
func (e *Engine) TokenURI(id TokenID) (string, error) {
	edition, err := e.getEdition(id)
	if err != nil {
		return "", err
	}
	return e.resolver.Resolve(edition.ContentHash)
}

func (e *Engine) getEdition(id TokenID) (*Edition, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	edition, ok, err := e.state.EditionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || edition == nil {
		return nil, ErrEditionNotFound
	}
	return edition, nil
}

func (e *Engine) getIssue(id uint32) (*Issue, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	issue, ok, err := e.state.IssueGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || issue == nil {
		return nil, ErrIssueNotFound
	}
	return issue, nil
}
