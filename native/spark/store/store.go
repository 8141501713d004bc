package store

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"sparkledger/core/types"
	"sparkledger/native/spark"
	"sparkledger/storage"
)

var (
	issuePrefix    = []byte("spark/issue/")
	editionPrefix  = []byte("spark/edition/")
	holdingsPrefix = []byte("spark/holdings/")
	operatorPrefix = []byte("spark/operator/")
	accountPrefix  = []byte("spark/account/")
	nextIssueKey   = []byte("spark/nextissue")
)

// LedgerStore persists issues, editions, holdings, operator approvals, and
// native-currency accounts in a key-value database. It implements
// spark.State; every read returns a fresh decode so callers never alias
// stored bytes.
type LedgerStore struct {
	db storage.Database
}

// NewLedgerStore wraps the database.
func NewLedgerStore(db storage.Database) *LedgerStore {
	return &LedgerStore{db: db}
}

type storedIssue struct {
	ID             uint32
	Publisher      common.Address
	RoyaltyFee     uint8
	ShillTimes     uint16
	FirstSellPrice *big.Int
	ContentHash    common.Hash
	PaymentToken   common.Address
	IsFree         bool
	IsNC           bool
	IsND           bool
	TotalAmount    uint32
}

type storedEdition struct {
	TokenID          uint64
	Owner            common.Address
	FatherID         uint64
	Depth            uint32
	RemainShillTimes uint16
	ShillPrice       *big.Int
	Profit           *big.Int
	TransferPrice    *big.Int
	Approved         common.Address
	ContentHash      common.Hash
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func issueKey(id uint32) []byte {
	key := make([]byte, len(issuePrefix)+4)
	copy(key, issuePrefix)
	binary.BigEndian.PutUint32(key[len(issuePrefix):], id)
	return key
}

func editionKey(id spark.TokenID) []byte {
	key := make([]byte, len(editionPrefix)+8)
	copy(key, editionPrefix)
	binary.BigEndian.PutUint64(key[len(editionPrefix):], uint64(id))
	return key
}

func holdingsKey(owner common.Address) []byte {
	return append(append([]byte{}, holdingsPrefix...), owner.Bytes()...)
}

func operatorKey(owner, operator common.Address) []byte {
	key := append(append([]byte{}, operatorPrefix...), owner.Bytes()...)
	return append(key, operator.Bytes()...)
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

// IssueGet loads the issue record, reporting absence without error.
func (s *LedgerStore) IssueGet(id uint32) (*spark.Issue, bool, error) {
	raw, err := s.db.Get(issueKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec storedIssue
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, false, err
	}
	return &spark.Issue{
		ID:             rec.ID,
		Publisher:      rec.Publisher,
		RoyaltyFee:     rec.RoyaltyFee,
		ShillTimes:     rec.ShillTimes,
		FirstSellPrice: normalize(rec.FirstSellPrice),
		ContentHash:    rec.ContentHash,
		PaymentToken:   rec.PaymentToken,
		IsFree:         rec.IsFree,
		IsNC:           rec.IsNC,
		IsND:           rec.IsND,
		TotalAmount:    rec.TotalAmount,
	}, true, nil
}

// IssuePut stores the issue record.
func (s *LedgerStore) IssuePut(issue *spark.Issue) error {
	if issue == nil {
		return errors.New("store: nil issue")
	}
	raw, err := rlp.EncodeToBytes(&storedIssue{
		ID:             issue.ID,
		Publisher:      issue.Publisher,
		RoyaltyFee:     issue.RoyaltyFee,
		ShillTimes:     issue.ShillTimes,
		FirstSellPrice: normalize(issue.FirstSellPrice),
		ContentHash:    issue.ContentHash,
		PaymentToken:   issue.PaymentToken,
		IsFree:         issue.IsFree,
		IsNC:           issue.IsNC,
		IsND:           issue.IsND,
		TotalAmount:    issue.TotalAmount,
	})
	if err != nil {
		return err
	}
	return s.db.Put(issueKey(issue.ID), raw)
}

// EditionGet loads the edition record, reporting absence without error.
func (s *LedgerStore) EditionGet(id spark.TokenID) (*spark.Edition, bool, error) {
	raw, err := s.db.Get(editionKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec storedEdition
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, false, err
	}
	return &spark.Edition{
		TokenID:          spark.TokenID(rec.TokenID),
		Owner:            rec.Owner,
		FatherID:         spark.TokenID(rec.FatherID),
		Depth:            rec.Depth,
		RemainShillTimes: rec.RemainShillTimes,
		ShillPrice:       normalize(rec.ShillPrice),
		Profit:           normalize(rec.Profit),
		TransferPrice:    normalize(rec.TransferPrice),
		Approved:         rec.Approved,
		ContentHash:      rec.ContentHash,
	}, true, nil
}

// EditionPut stores the edition record.
func (s *LedgerStore) EditionPut(edition *spark.Edition) error {
	if edition == nil {
		return errors.New("store: nil edition")
	}
	raw, err := rlp.EncodeToBytes(&storedEdition{
		TokenID:          uint64(edition.TokenID),
		Owner:            edition.Owner,
		FatherID:         uint64(edition.FatherID),
		Depth:            edition.Depth,
		RemainShillTimes: edition.RemainShillTimes,
		ShillPrice:       normalize(edition.ShillPrice),
		Profit:           normalize(edition.Profit),
		TransferPrice:    normalize(edition.TransferPrice),
		Approved:         edition.Approved,
		ContentHash:      edition.ContentHash,
	})
	if err != nil {
		return err
	}
	return s.db.Put(editionKey(edition.TokenID), raw)
}

// NextIssueID allocates and persists the next monotonically increasing issue
// identifier, starting at 1.
func (s *LedgerStore) NextIssueID() (uint32, error) {
	next := uint32(1)
	raw, err := s.db.Get(nextIssueKey)
	if err == nil && len(raw) == 4 {
		next = binary.BigEndian.Uint32(raw)
	} else if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return 0, err
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, next+1)
	if err := s.db.Put(nextIssueKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// HoldingCountGet returns how many editions the address holds.
func (s *LedgerStore) HoldingCountGet(owner common.Address) (uint64, error) {
	raw, err := s.db.Get(holdingsKey(owner))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, errors.New("store: corrupt holdings record")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// HoldingCountPut stores the holding count for the address.
func (s *LedgerStore) HoldingCountPut(owner common.Address, count uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return s.db.Put(holdingsKey(owner), buf)
}

// OperatorApprovalGet reports whether operator may act for owner.
func (s *LedgerStore) OperatorApprovalGet(owner, operator common.Address) (bool, error) {
	raw, err := s.db.Get(operatorKey(owner, operator))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

// OperatorApprovalPut stores the operator approval flag.
func (s *LedgerStore) OperatorApprovalPut(owner, operator common.Address, approved bool) error {
	value := byte(0)
	if approved {
		value = 1
	}
	return s.db.Put(operatorKey(owner, operator), []byte{value})
}

// GetAccount loads the native-currency account, returning an empty account
// for unknown addresses.
func (s *LedgerStore) GetAccount(addr common.Address) (*types.Account, error) {
	raw, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedAccount
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, err
	}
	return &types.Account{Nonce: rec.Nonce, Balance: normalize(rec.Balance)}, nil
}

// PutAccount stores the native-currency account.
func (s *LedgerStore) PutAccount(addr common.Address, account *types.Account) error {
	if account == nil {
		return errors.New("store: nil account")
	}
	raw, err := rlp.EncodeToBytes(&storedAccount{
		Nonce:   account.Nonce,
		Balance: normalize(account.Balance),
	})
	if err != nil {
		return err
	}
	return s.db.Put(accountKey(addr), raw)
}

func normalize(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
