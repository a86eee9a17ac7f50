package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/token"
	"w2rchain/state"
	"w2rchain/storage"
)

// rawResponse mirrors RPCResponse but keeps the result undecoded so tests can
// unmarshal it into the shape each method returns.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ring := events.NewRing(64)

	tok := token.NewEngine()
	tok.SetState(manager)
	tok.SetOwner(testAddr(1))
	tok.SetCap(big.NewInt(1_000_000))
	tok.SetPauses(manager)
	tok.SetEmitter(ring)

	srv := NewServer(Engines{Token: tok}, ring)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func call(t *testing.T, ts *httptest.Server, bearer, method string, params ...interface{}) *rawResponse {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()
	var out rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &out
}

const ownerHex = "0x0000000000000000000000000000000000000001"

func TestMintThenBalanceOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts, "", "token_mint", ownerHex, ownerHex, "1500")
	if resp.Error != nil {
		t.Fatalf("mint failed: %+v", resp.Error)
	}

	resp = call(t, ts, "", "token_balanceOf", ownerHex)
	if resp.Error != nil {
		t.Fatalf("balanceOf failed: %+v", resp.Error)
	}
	var balance string
	if err := json.Unmarshal(resp.Result, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance != "1500" {
		t.Fatalf("balance = %s, want 1500", balance)
	}
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.SetAuthToken("secret")

	resp := call(t, ts, "", "token_mint", ownerHex, ownerHex, "10")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	resp = call(t, ts, "wrong", "token_mint", ownerHex, ownerHex, "10")
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error for bad token, got %+v", resp.Error)
	}

	resp = call(t, ts, "secret", "token_mint", ownerHex, ownerHex, "10")
	if resp.Error != nil {
		t.Fatalf("mint with valid token failed: %+v", resp.Error)
	}

	// Reads stay open even when a token is configured.
	resp = call(t, ts, "", "token_balanceOf", ownerHex)
	if resp.Error != nil {
		t.Fatalf("balanceOf should not require auth: %+v", resp.Error)
	}
}

func TestUnknownMethodAndBadParams(t *testing.T) {
	_, ts := newTestServer(t)

	resp := call(t, ts, "", "token_noSuchMethod")
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}

	resp = call(t, ts, "", "token_balanceOf", "not-an-address")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params, got %+v", resp.Error)
	}

	resp = call(t, ts, "", "token_mint", ownerHex, ownerHex, "12x9")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params for malformed amount, got %+v", resp.Error)
	}
}

func TestEventsLatestPagesTheRing(t *testing.T) {
	srv, ts := newTestServer(t)
	tok := srv.engines.Token

	for i := 0; i < 3; i++ {
		if err := tok.Mint(testAddr(1), testAddr(2), big.NewInt(int64(i+1))); err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
	}

	resp := call(t, ts, "", "events_latest", 2)
	if resp.Error != nil {
		t.Fatalf("events_latest failed: %+v", resp.Error)
	}
	var page []*types.Event
	if err := json.Unmarshal(resp.Result, &page); err != nil {
		t.Fatalf("decode events page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("events = %d, want 2", len(page))
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
