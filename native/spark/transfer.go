package spark

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Approve grants to the right to take the edition in a transfer. Approving
// the current owner is rejected; the zero address clears the approval.
func (e *Engine) Approve(caller, to common.Address, id TokenID) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	edition, ok, err := e.state.EditionGet(id)
	if err != nil {
		return err
	}
	if !ok || edition == nil {
		return ErrEditionNotFound
	}
	if to == edition.Owner {
		return ErrApprovalToOwner
	}
	authorized, err := e.isOwnerOrOperator(e.state, caller, edition.Owner)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotApprovedOrOwner
	}
	edition.Approved = to
	if err := e.state.EditionPut(edition); err != nil {
		return err
	}
	e.emit(approvalEvent(edition.Owner, to, id))
	return nil
}

// SetApprovalForAll grants or revokes operator rights over every edition the
// caller owns now or later.
func (e *Engine) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if operator == caller {
		return ErrApproveToCaller
	}
	if err := e.state.OperatorApprovalPut(caller, operator, approved); err != nil {
		return err
	}
	e.emit(approvalForAllEvent(caller, operator, approved))
	return nil
}

// DeterminePrice lists the edition for resale at the given price. Only the
// owner may list; operators and approved spenders cannot.
func (e *Engine) DeterminePrice(caller common.Address, id TokenID, price *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := checkPriceWidth(price); err != nil {
		return err
	}
	edition, ok, err := e.state.EditionGet(id)
	if err != nil {
		return err
	}
	if !ok || edition == nil {
		return ErrEditionNotFound
	}
	if caller != edition.Owner {
		return ErrNotOwner
	}
	edition.TransferPrice = newBigInt(price)
	if err := e.state.EditionPut(edition); err != nil {
		return err
	}
	e.emit(determinePriceEvent(id, edition.TransferPrice.String()))
	return nil
}

// DeterminePriceAndApprove lists the edition and approves the buyer in one
// step.
func (e *Engine) DeterminePriceAndApprove(caller common.Address, id TokenID, price *big.Int, to common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := checkPriceWidth(price); err != nil {
		return err
	}
	edition, ok, err := e.state.EditionGet(id)
	if err != nil {
		return err
	}
	if !ok || edition == nil {
		return ErrEditionNotFound
	}
	if to == edition.Owner {
		return ErrApprovalToOwner
	}
	if caller != edition.Owner {
		return ErrNotOwner
	}
	edition.TransferPrice = newBigInt(price)
	edition.Approved = to
	if err := e.state.EditionPut(edition); err != nil {
		return err
	}
	e.emit(determinePriceAndApproveEvent(id, edition.TransferPrice.String(), to))
	return nil
}

// SafeTransferFrom moves the edition from its owner to the recipient. When
// the caller is the owner the transfer is a free gift and any offered payment
// is rejected. Otherwise the caller must be approved, the edition must be
// listed, and the payment must match the listed price; the protocol fee is
// deducted, a royalty share is credited to the configured ancestor pool, and
// the remainder is paid to the seller immediately.
func (e *Engine) SafeTransferFrom(caller, from, to common.Address, id TokenID, payment *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if isZeroAddress(to) {
		return ErrTransferToZero
	}
	st := newStage(e.state)
	edition, issue, err := e.resolveEditionAndIssue(st, id)
	if err != nil {
		return err
	}
	if edition.Owner != from {
		return ErrNotOwner
	}
	if caller == edition.Owner {
		if payment != nil && payment.Sign() != 0 {
			return ErrWrongPrice
		}
	} else {
		authorized, err := e.isApprovedOrOwner(st, caller, edition)
		if err != nil {
			return err
		}
		if !authorized {
			return ErrNotApprovedOrOwner
		}
		price := newBigInt(edition.TransferPrice)
		received, err := e.collectPayment(st, issue, caller, price, payment)
		if err != nil {
			return err
		}
		if received.Sign() > 0 {
			net := new(big.Int).Sub(received, calculateFee(received, e.daoFee))
			if fee := new(big.Int).Sub(received, net); fee.Sign() > 0 {
				if err := e.payOut(st, issue, e.daoAccount, fee); err != nil {
					return err
				}
			}
			if !edition.IsRoot() {
				if royalty := calculateFee(net, issue.RoyaltyFee); royalty.Sign() > 0 {
					net = net.Sub(net, royalty)
					if err := e.addProfit(st, e.royaltyPool(issue, edition), royalty); err != nil {
						return err
					}
				}
			}
			if err := e.payOut(st, issue, from, net); err != nil {
				return err
			}
			st.queue(claimEvent(id, from, net.String()))
		}
	}

	edition.Owner = to
	edition.Approved = common.Address{}
	edition.TransferPrice = big.NewInt(0)
	if err := st.EditionPut(edition); err != nil {
		return err
	}
	if err := e.adjustHoldings(st, from, -1); err != nil {
		return err
	}
	if err := e.adjustHoldings(st, to, 1); err != nil {
		return err
	}
	st.queue(transferEvent(from, to, id))
	return e.finish(st)
}

func (e *Engine) royaltyPool(issue *Issue, edition *Edition) TokenID {
	if e.routing == RoyaltyToFather {
		return edition.FatherID
	}
	return issue.RootTokenID()
}

// SetURI replaces the edition's content hash. Only the owner may set it, and
// issues published under the ND protocol restrict it to the root edition.
func (e *Engine) SetURI(caller common.Address, id TokenID, hash []byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if len(hash) != common.HashLength {
		return ErrHashLength
	}
	edition, issue, err := e.resolveEditionAndIssue(e.state, id)
	if err != nil {
		return err
	}
	if issue.IsND && !edition.IsRoot() {
		return ErrNDProtocol
	}
	if caller != edition.Owner {
		return ErrNotOwner
	}
	edition.ContentHash = common.BytesToHash(hash)
	if err := e.state.EditionPut(edition); err != nil {
		return err
	}
	e.emit(setURIEvent(id, edition.ContentHash))
	return nil
}

// Label records a free-form annotation against the edition. Only the owner
// may label; the annotation lives only in the event stream.
func (e *Engine) Label(caller common.Address, id TokenID, content string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	edition, ok, err := e.state.EditionGet(id)
	if err != nil {
		return err
	}
	if !ok || edition == nil {
		return ErrEditionNotFound
	}
	if caller != edition.Owner {
		return ErrNotOwner
	}
	e.emit(labelEvent(id, content))
	return nil
}

func (e *Engine) isOwnerOrOperator(st State, caller, owner common.Address) (bool, error) {
	if caller == owner {
		return true, nil
	}
	return st.OperatorApprovalGet(owner, caller)
}

func (e *Engine) isApprovedOrOwner(st State, caller common.Address, edition *Edition) (bool, error) {
	if caller == edition.Owner || caller == edition.Approved {
		return true, nil
	}
	return st.OperatorApprovalGet(edition.Owner, caller)
}
