package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"sparkledger/native/spark"
	"sparkledger/native/spark/store"
	"sparkledger/storage"
)

const (
	testPublisher = "0x0000000000000000000000000000000000000a01"
	testBuyer     = "0x0000000000000000000000000000000000000b01"
	testHashHex   = "4f0b018a3b003b7c99f97427f410cafe5707ba18d28b13cd8bfa59e08e110380"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := spark.NewEngine()
	engine.SetState(store.NewLedgerStore(storage.NewMemDB()))
	engine.SetVault(common.HexToAddress("0x0000000000000000000000000000000000000f01"))
	tokens := spark.NewMemTokenLedger()
	engine.SetTokenLedger(tokens)
	srv := httptest.NewServer(NewServer(engine, tokens, nil))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func publishDefault(t *testing.T, srv *httptest.Server) publishResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/v1/publish", publishRequest{
		Publisher:   testPublisher,
		Price:       "100",
		RoyaltyFee:  10,
		ShillTimes:  5,
		ContentHash: testHashHex,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out publishResponse
	decodeBody(t, resp, &out)
	return out
}

func fundAccount(t *testing.T, srv *httptest.Server, addr, amount string) {
	t.Helper()
	resp := postJSON(t, fmt.Sprintf("%s/v1/accounts/%s/fund", srv.URL, addr), fundRequest{Amount: amount})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestPublishAndFetchIssue(t *testing.T) {
	srv := newTestServer(t)
	published := publishDefault(t, srv)
	require.Equal(t, uint32(1), published.IssueID)
	require.Equal(t, "4294967297", published.RootTokenID)

	resp, err := http.Get(srv.URL + "/v1/issues/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issue issueView
	decodeBody(t, resp, &issue)
	require.Equal(t, common.HexToAddress(testPublisher).Hex(), issue.Publisher)
	require.Equal(t, uint8(10), issue.RoyaltyFee)
	require.Equal(t, uint32(1), issue.TotalAmount)
}

func TestShillClaimFlow(t *testing.T) {
	srv := newTestServer(t)
	published := publishDefault(t, srv)
	fundAccount(t, srv, testBuyer, "1000")

	resp := postJSON(t, srv.URL+"/v1/shill", shillRequest{
		Caller:   testBuyer,
		FatherID: published.RootTokenID,
		Payment:  "100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var child editionResponse
	decodeBody(t, resp, &child)
	require.Equal(t, common.HexToAddress(testBuyer).Hex(), child.Owner)
	require.Equal(t, "90", child.ShillPrice)

	resp = postJSON(t, srv.URL+"/v1/claim", claimRequest{TokenID: published.RootTokenID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claimed claimResponse
	decodeBody(t, resp, &claimed)
	require.Equal(t, "100", claimed.Amount)

	resp, err := http.Get(srv.URL + "/v1/accounts/" + testPublisher)
	require.NoError(t, err)
	var account accountView
	decodeBody(t, resp, &account)
	require.Equal(t, "100", account.Balance)
	require.Equal(t, uint64(1), account.Holdings)
}

func TestTransferFlow(t *testing.T) {
	srv := newTestServer(t)
	published := publishDefault(t, srv)
	fundAccount(t, srv, testBuyer, "1000")
	resp := postJSON(t, srv.URL+"/v1/shill", shillRequest{
		Caller:   testBuyer,
		FatherID: published.RootTokenID,
		Payment:  "100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var child editionResponse
	decodeBody(t, resp, &child)

	other := "0x0000000000000000000000000000000000000b02"
	resp = postJSON(t, srv.URL+"/v1/price-approve", priceRequest{
		Caller:  testBuyer,
		TokenID: child.TokenID,
		Price:   "200",
		To:      other,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	fundAccount(t, srv, other, "1000")
	resp = postJSON(t, srv.URL+"/v1/transfer", transferRequest{
		Caller:  other,
		From:    testBuyer,
		To:      other,
		TokenID: child.TokenID,
		Payment: "200",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/v1/editions/" + child.TokenID)
	require.NoError(t, err)
	var view editionResponse
	decodeBody(t, resp, &view)
	require.Equal(t, common.HexToAddress(other).Hex(), view.Owner)
	require.Equal(t, "0", view.TransferPrice)
	require.Contains(t, view.TokenURI, "https://ipfs.io/ipfs/Qm")
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	published := publishDefault(t, srv)

	// Unknown edition -> 404.
	resp, err := http.Get(srv.URL + "/v1/editions/99")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Wrong payment -> 402.
	fundAccount(t, srv, testBuyer, "1000")
	resp = postJSON(t, srv.URL+"/v1/shill", shillRequest{
		Caller:   testBuyer,
		FatherID: published.RootTokenID,
		Payment:  "99",
	})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	resp.Body.Close()

	// Invalid royalty -> 400.
	resp = postJSON(t, srv.URL+"/v1/publish", publishRequest{
		Publisher:   testPublisher,
		Price:       "100",
		RoyaltyFee:  101,
		ShillTimes:  5,
		ContentHash: testHashHex,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Stranger listing -> 403.
	resp = postJSON(t, srv.URL+"/v1/price", priceRequest{
		Caller:  testBuyer,
		TokenID: published.RootTokenID,
		Price:   "100",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Malformed body -> 400.
	resp, err = http.Post(srv.URL+"/v1/claim", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	publishDefault(t, srv)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Contains(t, buf.String(), "spark_issues_published_total")
	require.Contains(t, buf.String(), "spark_http_requests_total")
}
