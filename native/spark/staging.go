package spark

import (
	"github.com/ethereum/go-ethereum/common"

	"sparkledger/core/types"
)

// stage buffers every write of a single engine mutation so the whole call
// reaches the underlying state together, or not at all. Reads see buffered
// writes first. Events and token payouts are queued and released only after
// the flush succeeds.
//
// Commit flushes issues before editions and editions before accounts. If a
// flush is interrupted partway the worst outcomes are a burned identifier
// (the issue counter is ahead of the editions on disk) or funds stranded in
// the vault (a zeroed pool whose payout never landed) — an identifier is
// never re-allocated and a pool is never paid twice.
type stage struct {
	base State

	issues    map[uint32]*Issue
	editions  map[TokenID]*Edition
	holdings  map[common.Address]uint64
	operators map[[2]common.Address]bool
	accounts  map[common.Address]*types.Account

	issueOrder    []uint32
	editionOrder  []TokenID
	holdingOrder  []common.Address
	operatorOrder [][2]common.Address
	accountOrder  []common.Address

	events  []*types.Event
	payouts []func() error
}

func newStage(base State) *stage {
	return &stage{
		base:      base,
		issues:    make(map[uint32]*Issue),
		editions:  make(map[TokenID]*Edition),
		holdings:  make(map[common.Address]uint64),
		operators: make(map[[2]common.Address]bool),
		accounts:  make(map[common.Address]*types.Account),
	}
}

func (s *stage) IssueGet(id uint32) (*Issue, bool, error) {
	if issue, ok := s.issues[id]; ok {
		return issue.Clone(), true, nil
	}
	return s.base.IssueGet(id)
}

func (s *stage) IssuePut(issue *Issue) error {
	if _, ok := s.issues[issue.ID]; !ok {
		s.issueOrder = append(s.issueOrder, issue.ID)
	}
	s.issues[issue.ID] = issue.Clone()
	return nil
}

func (s *stage) EditionGet(id TokenID) (*Edition, bool, error) {
	if edition, ok := s.editions[id]; ok {
		return edition.Clone(), true, nil
	}
	return s.base.EditionGet(id)
}

func (s *stage) EditionPut(edition *Edition) error {
	if _, ok := s.editions[edition.TokenID]; !ok {
		s.editionOrder = append(s.editionOrder, edition.TokenID)
	}
	s.editions[edition.TokenID] = edition.Clone()
	return nil
}

// NextIssueID goes straight through to the underlying counter: a failure
// after allocation burns the identifier, which keeps allocation monotonic
// without ever reusing an id.
func (s *stage) NextIssueID() (uint32, error) {
	return s.base.NextIssueID()
}

func (s *stage) HoldingCountGet(owner common.Address) (uint64, error) {
	if count, ok := s.holdings[owner]; ok {
		return count, nil
	}
	return s.base.HoldingCountGet(owner)
}

func (s *stage) HoldingCountPut(owner common.Address, count uint64) error {
	if _, ok := s.holdings[owner]; !ok {
		s.holdingOrder = append(s.holdingOrder, owner)
	}
	s.holdings[owner] = count
	return nil
}

func (s *stage) OperatorApprovalGet(owner, operator common.Address) (bool, error) {
	key := [2]common.Address{owner, operator}
	if approved, ok := s.operators[key]; ok {
		return approved, nil
	}
	return s.base.OperatorApprovalGet(owner, operator)
}

func (s *stage) OperatorApprovalPut(owner, operator common.Address, approved bool) error {
	key := [2]common.Address{owner, operator}
	if _, ok := s.operators[key]; !ok {
		s.operatorOrder = append(s.operatorOrder, key)
	}
	s.operators[key] = approved
	return nil
}

func (s *stage) GetAccount(addr common.Address) (*types.Account, error) {
	if account, ok := s.accounts[addr]; ok {
		return account.Clone(), nil
	}
	return s.base.GetAccount(addr)
}

func (s *stage) PutAccount(addr common.Address, account *types.Account) error {
	if _, ok := s.accounts[addr]; !ok {
		s.accountOrder = append(s.accountOrder, addr)
	}
	s.accounts[addr] = account.Clone()
	return nil
}

// queue holds an event until the stage commits.
func (s *stage) queue(evt *types.Event) {
	s.events = append(s.events, evt)
}

// deferPayout holds an external token transfer until the stage commits.
func (s *stage) deferPayout(fn func() error) {
	s.payouts = append(s.payouts, fn)
}

func (s *stage) commit() error {
	for _, id := range s.issueOrder {
		if err := s.base.IssuePut(s.issues[id]); err != nil {
			return err
		}
	}
	for _, id := range s.editionOrder {
		if err := s.base.EditionPut(s.editions[id]); err != nil {
			return err
		}
	}
	for _, owner := range s.holdingOrder {
		if err := s.base.HoldingCountPut(owner, s.holdings[owner]); err != nil {
			return err
		}
	}
	for _, key := range s.operatorOrder {
		if err := s.base.OperatorApprovalPut(key[0], key[1], s.operators[key]); err != nil {
			return err
		}
	}
	for _, addr := range s.accountOrder {
		if err := s.base.PutAccount(addr, s.accounts[addr]); err != nil {
			return err
		}
	}
	return nil
}

// finish commits the stage, runs deferred token payouts, and releases the
// queued events. Nothing observable escapes a call whose commit failed.
func (e *Engine) finish(st *stage) error {
	if err := st.commit(); err != nil {
		return err
	}
	for _, pay := range st.payouts {
		if err := pay(); err != nil {
			return err
		}
	}
	for _, evt := range st.events {
		e.emit(evt)
	}
	return nil
}
