package service

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sparkledger/native/spark"
)

// Server exposes the ledger engine over HTTP. Mutating calls are serialized
// behind a mutex so the engine sees the single-writer model it assumes.
type Server struct {
	mu      sync.Mutex
	engine  *spark.Engine
	tokens  *spark.MemTokenLedger
	log     *slog.Logger
	metrics *metrics
	router  chi.Router
}

// NewServer wires the engine behind the HTTP surface. tokens may be nil when
// no token-priced issues are expected.
func NewServer(engine *spark.Engine, tokens *spark.MemTokenLedger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		engine:  engine,
		tokens:  tokens,
		log:     log,
		metrics: newMetrics(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/publish", s.metrics.instrument("publish", s.handlePublish))
		r.Post("/shill", s.metrics.instrument("shill", s.handleShill))
		r.Post("/claim", s.metrics.instrument("claim", s.handleClaim))
		r.Post("/transfer", s.metrics.instrument("transfer", s.handleTransfer))
		r.Post("/approve", s.metrics.instrument("approve", s.handleApprove))
		r.Post("/approve-all", s.metrics.instrument("approve_all", s.handleApproveAll))
		r.Post("/price", s.metrics.instrument("price", s.handlePrice))
		r.Post("/price-approve", s.metrics.instrument("price_approve", s.handlePriceApprove))
		r.Post("/uri", s.metrics.instrument("uri", s.handleSetURI))
		r.Post("/label", s.metrics.instrument("label", s.handleLabel))
		r.Get("/editions/{id}", s.metrics.instrument("edition", s.handleGetEdition))
		r.Get("/editions/{id}/uri", s.metrics.instrument("edition_uri", s.handleGetTokenURI))
		r.Get("/issues/{id}", s.metrics.instrument("issue", s.handleGetIssue))
		r.Get("/accounts/{addr}", s.metrics.instrument("account", s.handleGetAccount))
		r.Post("/accounts/{addr}/fund", s.metrics.instrument("fund", s.handleFund))
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type publishRequest struct {
	Publisher    string `json:"publisher"`
	Price        string `json:"price"`
	RoyaltyFee   uint32 `json:"royaltyFee"`
	ShillTimes   uint32 `json:"shillTimes"`
	ContentHash  string `json:"contentHash"`
	PaymentToken string `json:"paymentToken,omitempty"`
	IsFree       bool   `json:"isFree,omitempty"`
	IsNC         bool   `json:"isNC,omitempty"`
	IsND         bool   `json:"isND,omitempty"`
}

type publishResponse struct {
	IssueID     uint32 `json:"issueId"`
	RootTokenID string `json:"rootTokenId"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	publisher, err := parseAddress(req.Publisher)
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	hash, err := parseHash(req.ContentHash)
	if err != nil {
		writeError(w, err)
		return
	}
	var token common.Address
	if req.PaymentToken != "" {
		if token, err = parseAddress(req.PaymentToken); err != nil {
			writeError(w, err)
			return
		}
	}

	s.mu.Lock()
	issue, rootID, err := s.engine.Publish(spark.PublishParams{
		Publisher:      publisher,
		FirstSellPrice: price,
		RoyaltyFee:     req.RoyaltyFee,
		ShillTimes:     req.ShillTimes,
		ContentHash:    hash,
		PaymentToken:   token,
		IsFree:         req.IsFree,
		IsNC:           req.IsNC,
		IsND:           req.IsND,
	})
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.issues.Inc()
	s.metrics.editions.Inc()
	s.log.Info("issue published", "issueId", issue.ID, "publisher", publisher.Hex())
	writeJSON(w, http.StatusCreated, publishResponse{IssueID: issue.ID, RootTokenID: rootID.String()})
}

type shillRequest struct {
	Caller   string `json:"caller"`
	FatherID string `json:"fatherId"`
	Payment  string `json:"payment,omitempty"`
}

type editionResponse struct {
	TokenID          string `json:"tokenId"`
	Owner            string `json:"owner"`
	FatherID         string `json:"fatherId"`
	Depth            uint32 `json:"depth"`
	RemainShillTimes uint16 `json:"remainShillTimes"`
	ShillPrice       string `json:"shillPrice"`
	Profit           string `json:"profit"`
	TransferPrice    string `json:"transferPrice"`
	Approved         string `json:"approved"`
	ContentHash      string `json:"contentHash"`
	TokenURI         string `json:"tokenURI,omitempty"`
}

func (s *Server) handleShill(w http.ResponseWriter, r *http.Request) {
	var req shillRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	fatherID, err := parseTokenID(req.FatherID)
	if err != nil {
		writeError(w, err)
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	child, err := s.engine.AcceptShill(caller, fatherID, payment)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.editions.Inc()
	s.log.Info("edition minted", "tokenId", child.TokenID.String(), "owner", child.Owner.Hex())
	writeJSON(w, http.StatusCreated, s.editionView(child))
}

type claimRequest struct {
	TokenID string `json:"tokenId"`
}

type claimResponse struct {
	TokenID string `json:"tokenId"`
	Amount  string `json:"amount"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := parseTokenID(req.TokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	amount, err := s.engine.ClaimProfit(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{TokenID: id.String(), Amount: amount.String()})
}

type transferRequest struct {
	Caller  string `json:"caller"`
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"tokenId"`
	Payment string `json:"payment,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseTokenID(req.TokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.SafeTransferFrom(caller, from, to, id, payment)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type approveRequest struct {
	Caller  string `json:"caller"`
	To      string `json:"to"`
	TokenID string `json:"tokenId"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseTokenID(req.TokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.Approve(caller, to, id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

type approveAllRequest struct {
	Caller   string `json:"caller"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

func (s *Server) handleApproveAll(w http.ResponseWriter, r *http.Request) {
	var req approveAllRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	operator, err := parseAddress(req.Operator)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.SetApprovalForAll(caller, operator, req.Approved)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type priceRequest struct {
	Caller  string `json:"caller"`
	TokenID string `json:"tokenId"`
	Price   string `json:"price"`
	To      string `json:"to,omitempty"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, id, price, _, err := parsePriceRequest(req, false)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.DeterminePrice(caller, id, price)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "listed"})
}

func (s *Server) handlePriceApprove(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, id, price, to, err := parsePriceRequest(req, true)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.DeterminePriceAndApprove(caller, id, price, to)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "listed"})
}

func parsePriceRequest(req priceRequest, needTo bool) (common.Address, spark.TokenID, *big.Int, common.Address, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return common.Address{}, 0, nil, common.Address{}, err
	}
	id, err := parseTokenID(req.TokenID)
	if err != nil {
		return common.Address{}, 0, nil, common.Address{}, err
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		return common.Address{}, 0, nil, common.Address{}, err
	}
	var to common.Address
	if needTo {
		if to, err = parseAddress(req.To); err != nil {
			return common.Address{}, 0, nil, common.Address{}, err
		}
	}
	return caller, id, price, to, nil
}

type setURIRequest struct {
	Caller      string `json:"caller"`
	TokenID     string `json:"tokenId"`
	ContentHash string `json:"contentHash"`
}

func (s *Server) handleSetURI(w http.ResponseWriter, r *http.Request) {
	var req setURIRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseTokenID(req.TokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	hash, err := parseHash(req.ContentHash)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.SetURI(caller, id, hash)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type labelRequest struct {
	Caller  string `json:"caller"`
	TokenID string `json:"tokenId"`
	Content string `json:"content"`
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseTokenID(req.TokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.engine.Label(caller, id, req.Content)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "labelled"})
}

func (s *Server) handleGetEdition(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	edition, err := s.engine.GetEdition(id)
	var uri string
	var profit *big.Int
	if err == nil {
		uri, _ = s.engine.TokenURI(id)
		profit, _ = s.engine.GetProfitByNFTID(id)
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	view := s.editionView(edition)
	view.TokenURI = uri
	if profit != nil {
		view.Profit = profit.String()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetTokenURI(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	uri, err := s.engine.TokenURI(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tokenId": id.String(), "uri": uri})
}

type issueView struct {
	ID           uint32 `json:"id"`
	Publisher    string `json:"publisher"`
	RoyaltyFee   uint8  `json:"royaltyFee"`
	ShillTimes   uint16 `json:"shillTimes"`
	Price        string `json:"price"`
	ContentHash  string `json:"contentHash"`
	PaymentToken string `json:"paymentToken"`
	IsFree       bool   `json:"isFree"`
	IsNC         bool   `json:"isNC"`
	IsND         bool   `json:"isND"`
	TotalAmount  uint32 `json:"totalAmount"`
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, errBadRequest("issue id must be a uint32"))
		return
	}
	s.mu.Lock()
	issue, err := s.engine.GetIssue(uint32(id64))
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issueView{
		ID:           issue.ID,
		Publisher:    issue.Publisher.Hex(),
		RoyaltyFee:   issue.RoyaltyFee,
		ShillTimes:   issue.ShillTimes,
		Price:        issue.FirstSellPrice.String(),
		ContentHash:  issue.ContentHash.Hex(),
		PaymentToken: issue.PaymentToken.Hex(),
		IsFree:       issue.IsFree,
		IsNC:         issue.IsNC,
		IsND:         issue.IsND,
		TotalAmount:  issue.TotalAmount,
	})
}

type accountView struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	Holdings uint64 `json:"holdings"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	account, err := s.engine.GetAccount(addr)
	var holdings uint64
	if err == nil {
		holdings, err = s.engine.BalanceOf(addr)
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{
		Address:  addr.Hex(),
		Balance:  account.Balance.String(),
		Holdings: holdings,
	})
}

type fundRequest struct {
	Amount string `json:"amount"`
	Token  string `json:"token,omitempty"`
}

// handleFund credits an account with native currency, or with an in-memory
// token when one is named. It exists for local and test deployments; a
// production bridge would replace it.
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req fundRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if amount == nil || amount.Sign() <= 0 {
		writeError(w, errBadRequest("amount must be positive"))
		return
	}
	if req.Token != "" {
		token, err := parseAddress(req.Token)
		if err != nil {
			writeError(w, err)
			return
		}
		if s.tokens == nil {
			writeError(w, errBadRequest("token funding not available"))
			return
		}
		s.tokens.Mint(token, addr, amount)
		writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
		return
	}
	s.mu.Lock()
	err = s.fundNative(addr, amount)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
}

func (s *Server) fundNative(addr common.Address, amount *big.Int) error {
	account, err := s.engine.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return s.engine.CreditAccount(addr, account)
}

func (s *Server) editionView(edition *spark.Edition) editionResponse {
	return editionResponse{
		TokenID:          edition.TokenID.String(),
		Owner:            edition.Owner.Hex(),
		FatherID:         edition.FatherID.String(),
		Depth:            edition.Depth,
		RemainShillTimes: edition.RemainShillTimes,
		ShillPrice:       edition.ShillPrice.String(),
		Profit:           edition.Profit.String(),
		TransferPrice:    edition.TransferPrice.String(),
		Approved:         edition.Approved.Hex(),
		ContentHash:      edition.ContentHash.Hex(),
	}
}

type httpError struct {
	code int
	msg  string
}

func (e httpError) Error() string { return e.msg }

func errBadRequest(msg string) error { return httpError{code: http.StatusBadRequest, msg: msg} }

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errBadRequest("invalid address: " + raw)
	}
	return common.HexToAddress(raw), nil
}

// parseHash decodes without a length check; the engine owns the 32-byte rule
// so oversized hashes surface as ErrHashLength rather than a transport error.
func parseHash(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	hash, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errBadRequest("invalid content hash: " + err.Error())
	}
	return hash, nil
}

func parseTokenID(raw string) (spark.TokenID, error) {
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return 0, errBadRequest("invalid token id: " + raw)
	}
	id, err := spark.TokenIDFromBig(value)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, errBadRequest("invalid amount: " + raw)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var httpErr httpError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.code
	case errors.Is(err, spark.ErrIssueNotFound), errors.Is(err, spark.ErrEditionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, spark.ErrNotOwner),
		errors.Is(err, spark.ErrNotApprovedOrOwner),
		errors.Is(err, spark.ErrApprovalToOwner),
		errors.Is(err, spark.ErrApproveToCaller),
		errors.Is(err, spark.ErrNDProtocol):
		code = http.StatusForbidden
	case errors.Is(err, spark.ErrWrongPrice),
		errors.Is(err, spark.ErrInsufficientFunds):
		code = http.StatusPaymentRequired
	case errors.Is(err, spark.ErrNoRemainShillTimes):
		code = http.StatusConflict
	case errors.Is(err, spark.ErrValueOverflow),
		errors.Is(err, spark.ErrTokenIDOverflow),
		errors.Is(err, spark.ErrHashLength),
		errors.Is(err, spark.ErrInvalidRoyaltyFee),
		errors.Is(err, spark.ErrTransferToZero):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
