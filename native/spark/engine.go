package spark

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"sparkledger/core/events"
	"sparkledger/core/types"
	"sparkledger/metadata"
)

// DefaultLossRatio is the protocol-wide percentage applied to derive each
// child edition's shill price from its father's.
const DefaultLossRatio = 90

// ExhaustedShillPolicy selects how a shill against an edition whose remaining
// quota is zero is handled. Deployments disagree on the right behavior, so it
// is a profile choice rather than a constant.
type ExhaustedShillPolicy uint8

const (
	// ShillPolicyReject refuses the shill outright. Under this profile the
	// shill that decrements the quota to zero additionally mints a bonus
	// edition to the current holder of the issue root.
	ShillPolicyReject ExhaustedShillPolicy = iota
	// ShillPolicyOwnerMint degrades the shill into a free mint of a direct
	// copy assigned to the current holder of the issue root.
	ShillPolicyOwnerMint
)

// RoyaltyRouting selects which ancestor pool receives the royalty share of a
// secondary sale.
type RoyaltyRouting uint8

const (
	// RoyaltyToRoot credits the issue's root edition.
	RoyaltyToRoot RoyaltyRouting = iota
	// RoyaltyToFather credits the sold edition's immediate father.
	RoyaltyToFather
)

// State is the persistence surface the engine writes through. Implementations
// must return deep copies so that engine-side mutation never aliases stored
// records.
type State interface {
	IssueGet(id uint32) (*Issue, bool, error)
	IssuePut(issue *Issue) error
	EditionGet(id TokenID) (*Edition, bool, error)
	EditionPut(edition *Edition) error
	NextIssueID() (uint32, error)
	HoldingCountGet(owner common.Address) (uint64, error)
	HoldingCountPut(owner common.Address, count uint64) error
	OperatorApprovalGet(owner, operator common.Address) (bool, error)
	OperatorApprovalPut(owner, operator common.Address, approved bool) error
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// TokenLedger is the fungible-token collaborator used by issues priced in an
// external token. Implementations may be fee-on-transfer or deflationary; the
// engine measures balance deltas around every pull instead of trusting the
// requested amount.
type TokenLedger interface {
	BalanceOf(token, holder common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, from, to common.Address, amount *big.Int) error
}

// Engine wires the issuance, shill, claim, and transfer logic with
// persistence and event emission. All mutating calls are expected to run
// under the single-writer model: callers serialize them externally, and each
// call validates fully before writing.
type Engine struct {
	state    State
	emitter  events.Emitter
	tokens   TokenLedger
	resolver metadata.Resolver

	vault       common.Address
	daoAccount  common.Address
	lossRatio   uint8
	daoFee      uint8
	shillPolicy ExhaustedShillPolicy
	routing     RoyaltyRouting
}

// NewEngine constructs an engine with the default deployment profile: loss
// ratio 90, no protocol fee, reject-exhausted shills, royalty to root.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		resolver:  metadata.NewIPFSGateway(metadata.DefaultGatewayPrefix),
		lossRatio: DefaultLossRatio,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTokenLedger configures the fungible-token collaborator.
func (e *Engine) SetTokenLedger(tokens TokenLedger) { e.tokens = tokens }

// SetMetadataResolver overrides the content-hash resolver used by TokenURI.
func (e *Engine) SetMetadataResolver(resolver metadata.Resolver) {
	if resolver == nil {
		e.resolver = metadata.NewIPFSGateway(metadata.DefaultGatewayPrefix)
		return
	}
	e.resolver = resolver
}

// SetVault configures the holding account for pooled, unclaimed profit.
func (e *Engine) SetVault(addr common.Address) { e.vault = addr }

// SetDAOAccount configures the recipient of the protocol fee. When unset the
// deducted fee remains in the vault.
func (e *Engine) SetDAOAccount(addr common.Address) { e.daoAccount = addr }

// SetLossRatio configures the price-decay percentage. Values outside [1,100]
// are ignored.
func (e *Engine) SetLossRatio(ratio uint8) {
	if ratio == 0 || ratio > 100 {
		return
	}
	e.lossRatio = ratio
}

// SetDAOFee configures the protocol fee percentage. Values above 100 are
// ignored.
func (e *Engine) SetDAOFee(fee uint8) {
	if fee > 100 {
		return
	}
	e.daoFee = fee
}

// SetExhaustedShillPolicy selects the exhausted-quota behavior.
func (e *Engine) SetExhaustedShillPolicy(policy ExhaustedShillPolicy) { e.shillPolicy = policy }

// SetRoyaltyRouting selects the secondary-sale royalty destination.
func (e *Engine) SetRoyaltyRouting(routing RoyaltyRouting) { e.routing = routing }

// LossRatio returns the configured price-decay percentage.
func (e *Engine) LossRatio() uint8 { return e.lossRatio }

// DAOFee returns the configured protocol fee percentage.
func (e *Engine) DAOFee() uint8 { return e.daoFee }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func isZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// PublishParams carries the parameters of a publish call. Royalty fee and
// shill times arrive wider than their storage slots so that width violations
// can be rejected explicitly rather than truncated.
type PublishParams struct {
	Publisher      common.Address
	FirstSellPrice *big.Int
	RoyaltyFee     uint32
	ShillTimes     uint32
	ContentHash    []byte
	PaymentToken   common.Address
	IsFree         bool
	IsNC           bool
	IsND           bool
}

// Publish creates a new issue and mints its root edition to the publisher.
func (e *Engine) Publish(p PublishParams) (*Issue, TokenID, error) {
	if e == nil || e.state == nil {
		return nil, 0, ErrNilState
	}
	if p.RoyaltyFee > math.MaxUint8 {
		return nil, 0, ErrValueOverflow
	}
	if p.RoyaltyFee > 100 {
		return nil, 0, ErrInvalidRoyaltyFee
	}
	if p.ShillTimes > math.MaxUint16 {
		return nil, 0, ErrValueOverflow
	}
	if err := checkPriceWidth(p.FirstSellPrice); err != nil {
		return nil, 0, err
	}
	if len(p.ContentHash) != common.HashLength {
		return nil, 0, ErrHashLength
	}

	st := newStage(e.state)
	issueID, err := st.NextIssueID()
	if err != nil {
		return nil, 0, err
	}
	issue := &Issue{
		ID:             issueID,
		Publisher:      p.Publisher,
		RoyaltyFee:     uint8(p.RoyaltyFee),
		ShillTimes:     uint16(p.ShillTimes),
		FirstSellPrice: newBigInt(p.FirstSellPrice),
		ContentHash:    common.BytesToHash(p.ContentHash),
		PaymentToken:   p.PaymentToken,
		IsFree:         p.IsFree,
		IsNC:           p.IsNC,
		IsND:           p.IsND,
		TotalAmount:    1,
	}
	rootID := issue.RootTokenID()
	root := &Edition{
		TokenID:          rootID,
		Owner:            p.Publisher,
		FatherID:         rootID,
		Depth:            0,
		RemainShillTimes: issue.ShillTimes,
		ShillPrice:       newBigInt(issue.FirstSellPrice),
		Profit:           big.NewInt(0),
		TransferPrice:    big.NewInt(0),
		ContentHash:      issue.ContentHash,
	}
	if err := st.IssuePut(issue); err != nil {
		return nil, 0, err
	}
	if err := st.EditionPut(root); err != nil {
		return nil, 0, err
	}
	if err := e.adjustHoldings(st, p.Publisher, 1); err != nil {
		return nil, 0, err
	}
	st.queue(publishEvent(issue))
	st.queue(transferEvent(common.Address{}, p.Publisher, rootID))
	if err := e.finish(st); err != nil {
		return nil, 0, err
	}
	return issue.Clone(), rootID, nil
}

// AcceptShill mints a child edition from the supplied father edition, paying
// the father's current shill price. The payment argument is the native-
// currency amount offered by the caller; token-priced issues ignore it and
// pull exactly the price through the token collaborator instead.
func (e *Engine) AcceptShill(caller common.Address, fatherID TokenID, payment *big.Int) (*Edition, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	st := newStage(e.state)
	father, issue, err := e.resolveEditionAndIssue(st, fatherID)
	if err != nil {
		return nil, err
	}
	if father.RemainShillTimes == 0 {
		if e.shillPolicy == ShillPolicyOwnerMint {
			copyEdition, err := e.ownerMintFallback(st, issue, father)
			if err != nil {
				return nil, err
			}
			if err := e.finish(st); err != nil {
				return nil, err
			}
			return copyEdition, nil
		}
		return nil, ErrNoRemainShillTimes
	}

	price := newBigInt(father.ShillPrice)
	received, err := e.collectPayment(st, issue, caller, price, payment)
	if err != nil {
		return nil, err
	}
	if received.Sign() > 0 {
		father.Profit = new(big.Int).Add(newBigInt(father.Profit), received)
	}
	father.RemainShillTimes--

	child := e.newChild(issue, father, caller)
	if err := st.EditionPut(father); err != nil {
		return nil, err
	}
	if err := st.EditionPut(child); err != nil {
		return nil, err
	}
	if err := e.adjustHoldings(st, caller, 1); err != nil {
		return nil, err
	}
	st.queue(transferEvent(common.Address{}, caller, child.TokenID))

	// The shill that exhausts the quota grants one extra edition to the
	// current holder of the issue root.
	if father.RemainShillTimes == 0 && e.shillPolicy == ShillPolicyReject {
		rootOwner, err := e.rootOwner(st, issue)
		if err != nil {
			return nil, err
		}
		bonus := e.newChild(issue, father, rootOwner)
		if err := st.EditionPut(bonus); err != nil {
			return nil, err
		}
		if err := e.adjustHoldings(st, rootOwner, 1); err != nil {
			return nil, err
		}
		st.queue(transferEvent(common.Address{}, rootOwner, bonus.TokenID))
	}
	if err := st.IssuePut(issue); err != nil {
		return nil, err
	}
	if err := e.finish(st); err != nil {
		return nil, err
	}
	return child.Clone(), nil
}

// ownerMintFallback degrades an exhausted shill into a free mint of a direct
// copy of the father, assigned to the current holder of the issue root.
// Nothing on the father changes and no payment is taken.
func (e *Engine) ownerMintFallback(st *stage, issue *Issue, father *Edition) (*Edition, error) {
	rootOwner, err := e.rootOwner(st, issue)
	if err != nil {
		return nil, err
	}
	issue.TotalAmount++
	copyEdition := &Edition{
		TokenID:          NewTokenID(issue.ID, issue.TotalAmount),
		Owner:            rootOwner,
		FatherID:         father.TokenID,
		Depth:            father.Depth + 1,
		RemainShillTimes: issue.ShillTimes,
		ShillPrice:       newBigInt(father.ShillPrice),
		Profit:           big.NewInt(0),
		TransferPrice:    big.NewInt(0),
		ContentHash:      father.ContentHash,
	}
	if err := st.EditionPut(copyEdition); err != nil {
		return nil, err
	}
	if err := st.IssuePut(issue); err != nil {
		return nil, err
	}
	if err := e.adjustHoldings(st, rootOwner, 1); err != nil {
		return nil, err
	}
	st.queue(transferEvent(common.Address{}, rootOwner, copyEdition.TokenID))
	return copyEdition.Clone(), nil
}

// newChild allocates the next edition of the issue as a child of father. The
// caller persists both records.
func (e *Engine) newChild(issue *Issue, father *Edition, owner common.Address) *Edition {
	issue.TotalAmount++
	return &Edition{
		TokenID:          NewTokenID(issue.ID, issue.TotalAmount),
		Owner:            owner,
		FatherID:         father.TokenID,
		Depth:            father.Depth + 1,
		RemainShillTimes: issue.ShillTimes,
		ShillPrice:       decayPrice(father.ShillPrice, e.lossRatio),
		Profit:           big.NewInt(0),
		TransferPrice:    big.NewInt(0),
		ContentHash:      father.ContentHash,
	}
}

// ClaimProfit resolves the edition's pooled profit: the protocol fee is
// deducted first, then the royalty share is forwarded to the father's pool
// (one level per claim — ancestors realize it by claiming in turn), and the
// remainder is paid to the current owner. A zero pool succeeds as a no-op.
func (e *Engine) ClaimProfit(id TokenID) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	st := newStage(e.state)
	edition, issue, err := e.resolveEditionAndIssue(st, id)
	if err != nil {
		return nil, err
	}
	if edition.Profit == nil || edition.Profit.Sign() == 0 {
		return big.NewInt(0), nil
	}
	amount := newBigInt(edition.Profit)
	edition.Profit = big.NewInt(0)
	if err := st.EditionPut(edition); err != nil {
		return nil, err
	}

	if fee := calculateFee(amount, e.daoFee); fee.Sign() > 0 {
		amount = amount.Sub(amount, fee)
		if err := e.payOut(st, issue, e.daoAccount, fee); err != nil {
			return nil, err
		}
	}
	if !edition.IsRoot() {
		if royalty := calculateFee(amount, issue.RoyaltyFee); royalty.Sign() > 0 {
			amount = amount.Sub(amount, royalty)
			if err := e.addProfit(st, edition.FatherID, royalty); err != nil {
				return nil, err
			}
		}
	}
	if err := e.payOut(st, issue, edition.Owner, amount); err != nil {
		return nil, err
	}
	st.queue(claimEvent(id, edition.Owner, amount.String()))
	if err := e.finish(st); err != nil {
		return nil, err
	}
	return amount, nil
}

func (e *Engine) addProfit(st State, id TokenID, amount *big.Int) error {
	edition, ok, err := st.EditionGet(id)
	if err != nil {
		return err
	}
	if !ok || edition == nil {
		return ErrEditionNotFound
	}
	edition.Profit = new(big.Int).Add(newBigInt(edition.Profit), amount)
	return st.EditionPut(edition)
}

func (e *Engine) rootOwner(st State, issue *Issue) (common.Address, error) {
	root, ok, err := st.EditionGet(issue.RootTokenID())
	if err != nil {
		return common.Address{}, err
	}
	if !ok || root == nil {
		return common.Address{}, ErrEditionNotFound
	}
	return root.Owner, nil
}

func (e *Engine) resolveEditionAndIssue(st State, id TokenID) (*Edition, *Issue, error) {
	edition, ok, err := st.EditionGet(id)
	if err != nil {
		return nil, nil, err
	}
	if !ok || edition == nil {
		return nil, nil, ErrEditionNotFound
	}
	issue, ok, err := st.IssueGet(id.IssueID())
	if err != nil {
		return nil, nil, err
	}
	if !ok || issue == nil {
		return nil, nil, ErrIssueNotFound
	}
	return edition, issue, nil
}

// collectPayment moves the asked price from the payer into the vault and
// returns the amount actually received. Free issues collect nothing. Native
// payments must match the price exactly; token payments pull the price and
// credit only the measured balance delta.
func (e *Engine) collectPayment(st State, issue *Issue, payer common.Address, price, payment *big.Int) (*big.Int, error) {
	if issue.IsFree || price.Sign() == 0 {
		if !issue.IsFree && payment != nil && payment.Sign() != 0 {
			return nil, ErrWrongPrice
		}
		return big.NewInt(0), nil
	}
	if isZeroAddress(e.vault) {
		return nil, ErrVaultNotSet
	}
	if isZeroAddress(issue.PaymentToken) {
		if payment == nil || payment.Cmp(price) != 0 {
			return nil, ErrWrongPrice
		}
		payerAccount, err := st.GetAccount(payer)
		if err != nil {
			return nil, err
		}
		payerAccount = ensureAccount(payerAccount)
		if payerAccount.Balance.Cmp(price) < 0 {
			return nil, ErrInsufficientFunds
		}
		payerAccount.Balance = new(big.Int).Sub(payerAccount.Balance, price)
		vaultAccount, err := st.GetAccount(e.vault)
		if err != nil {
			return nil, err
		}
		vaultAccount = ensureAccount(vaultAccount)
		vaultAccount.Balance = new(big.Int).Add(vaultAccount.Balance, price)
		if err := st.PutAccount(payer, payerAccount); err != nil {
			return nil, err
		}
		if err := st.PutAccount(e.vault, vaultAccount); err != nil {
			return nil, err
		}
		return newBigInt(price), nil
	}
	if e.tokens == nil {
		return nil, ErrTokenLedgerNotSet
	}
	before, err := e.tokens.BalanceOf(issue.PaymentToken, e.vault)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.TransferFrom(issue.PaymentToken, payer, e.vault, price); err != nil {
		return nil, err
	}
	after, err := e.tokens.BalanceOf(issue.PaymentToken, e.vault)
	if err != nil {
		return nil, err
	}
	received := new(big.Int).Sub(after, before)
	if received.Sign() < 0 {
		received = big.NewInt(0)
	}
	return received, nil
}

// payOut moves value out of the vault to the payee. A zero destination keeps
// the funds in the vault (used for the protocol fee when no DAO account is
// configured). Native payouts are staged with the rest of the call; token
// payouts run after the stage commits, so an external transfer failure leaves
// the owed amount in the vault rather than rolling back the ledger.
func (e *Engine) payOut(st *stage, issue *Issue, payee common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 || isZeroAddress(payee) {
		return nil
	}
	if isZeroAddress(e.vault) {
		return ErrVaultNotSet
	}
	if isZeroAddress(issue.PaymentToken) {
		vaultAccount, err := st.GetAccount(e.vault)
		if err != nil {
			return err
		}
		vaultAccount = ensureAccount(vaultAccount)
		if vaultAccount.Balance.Cmp(amount) < 0 {
			return ErrVaultUnderfunded
		}
		vaultAccount.Balance = new(big.Int).Sub(vaultAccount.Balance, amount)
		payeeAccount, err := st.GetAccount(payee)
		if err != nil {
			return err
		}
		payeeAccount = ensureAccount(payeeAccount)
		payeeAccount.Balance = new(big.Int).Add(payeeAccount.Balance, amount)
		if err := st.PutAccount(e.vault, vaultAccount); err != nil {
			return err
		}
		return st.PutAccount(payee, payeeAccount)
	}
	if e.tokens == nil {
		return ErrTokenLedgerNotSet
	}
	token := issue.PaymentToken
	owed := newBigInt(amount)
	st.deferPayout(func() error {
		return e.tokens.Transfer(token, e.vault, payee, owed)
	})
	return nil
}

func (e *Engine) adjustHoldings(st State, owner common.Address, delta int64) error {
	if isZeroAddress(owner) {
		return nil
	}
	count, err := st.HoldingCountGet(owner)
	if err != nil {
		return err
	}
	next := int64(count) + delta
	if next < 0 {
		return ErrHoldingsUnderflow
	}
	return st.HoldingCountPut(owner, uint64(next))
}
