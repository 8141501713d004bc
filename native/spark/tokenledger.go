package spark

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemTokenLedger is an in-memory fungible-token book. It backs token-priced
// issues in deployments without an external token bridge and doubles as the
// test collaborator.
type MemTokenLedger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
}

// NewMemTokenLedger constructs an empty book.
func NewMemTokenLedger() *MemTokenLedger {
	return &MemTokenLedger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Mint credits holder with amount of token.
func (l *MemTokenLedger) Mint(token, holder common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, holder, amount)
}

// BalanceOf returns the holder's balance of token.
func (l *MemTokenLedger) BalanceOf(token, holder common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if book, ok := l.balances[token]; ok {
		if bal, ok := book[holder]; ok {
			return new(big.Int).Set(bal), nil
		}
	}
	return big.NewInt(0), nil
}

// Transfer moves amount of token from one holder to another.
func (l *MemTokenLedger) Transfer(token, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, from, to, amount)
}

// TransferFrom moves amount of token on behalf of the holder. The in-memory
// book does not track allowances; the engine is the only caller and acts as
// an implicitly approved operator.
func (l *MemTokenLedger) TransferFrom(token, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, from, to, amount)
}

func (l *MemTokenLedger) move(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	book := l.balances[token]
	bal, ok := book[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	book[from] = new(big.Int).Sub(bal, amount)
	l.credit(token, to, amount)
	return nil
}

func (l *MemTokenLedger) credit(token, holder common.Address, amount *big.Int) {
	book, ok := l.balances[token]
	if !ok {
		book = make(map[common.Address]*big.Int)
		l.balances[token] = book
	}
	if bal, ok := book[holder]; ok {
		book[holder] = new(big.Int).Add(bal, amount)
	} else {
		book[holder] = new(big.Int).Set(amount)
	}
}
