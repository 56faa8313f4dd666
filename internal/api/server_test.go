package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"SmartAccount-Chain/internal/account"
	"SmartAccount-Chain/internal/actions/vault"
	"SmartAccount-Chain/internal/bus"
	"SmartAccount-Chain/internal/policy/multisig"
	"SmartAccount-Chain/internal/storage/mysql"
)

const (
	acctHex  = "0x1111111111111111111111111111111111111111"
	aliceHex = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bobHex   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newTestServer(t *testing.T) (*Server, *vault.Vault, *account.ManualClock) {
	t.Helper()

	policyCfg, err := multisig.NewConfig(2, []multisig.Member{
		{Addr: common.HexToAddress(aliceHex), Weight: 1},
		{Addr: common.HexToAddress(bobHex), Weight: 1},
	}, nil)
	if err != nil {
		t.Fatalf("multisig config: %v", err)
	}

	entries := []account.Dep{
		{Name: account.CoreDepName, Addr: common.HexToAddress("0x01"), Version: 1},
		{Name: vault.ModuleName, Addr: common.HexToAddress("0x02"), Version: 1},
	}
	deps, err := account.NewDeps(account.NewAllowlist(entries...), false, entries)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	acct := account.New(common.HexToAddress(acctHex), multisig.Policy{}, policyCfg, deps)

	repo, err := mysql.NewMemoryRepository(t.TempDir())
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	clock := account.NewManualClock(0)
	svc := account.NewService(repo, bus.NewMemoryBus(64), clock)
	svc.SetPolicyHooks(multisig.Approve, multisig.Disapprove, func(role string) account.Outcome {
		return multisig.NewOutcome(role)
	})
	acctVault := vault.NewVault(acct.Address())
	svc.RegisterModule(vault.NewModule(acctVault))
	if err := svc.RegisterAccount(acct); err != nil {
		t.Fatalf("register account: %v", err)
	}
	return NewServer(":0", svc), acctVault, clock
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func proposeSpend(t *testing.T, handler http.Handler, key string, coin common.Hash) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(vault.SpendAction{
		Coin:      coin,
		Amount:    25,
		Recipient: common.HexToAddress("0xcc"),
	})
	if err != nil {
		t.Fatalf("marshal spend action: %v", err)
	}
	return doJSON(t, handler, http.MethodPost, "/api/v1/intents", map[string]any{
		"account":         acctHex,
		"module":          vault.ModuleName,
		"proposer":        aliceHex,
		"key":             key,
		"execution_times": []int64{0},
		"expiration_time": 10_000,
		"payload":         json.RawMessage(payload),
	})
}

func TestIntentLifecycleOverHTTP(t *testing.T) {
	server, acctVault, _ := newTestServer(t)
	handler := server.Handler()
	coin := common.HexToHash("0xc0ffee")
	acctVault.Deposit(coin, 100)

	rec := proposeSpend(t, handler, "http-1", coin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("propose status: %d body %s", rec.Code, rec.Body.String())
	}
	var view account.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Key != "http-1" || view.ActionCount != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}

	// 阈值未达前执行被拒。
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/intents/http-1/execute", executeBody{Account: acctHex})
	if rec.Code != http.StatusConflict {
		t.Fatalf("premature execute status: %d body %s", rec.Code, rec.Body.String())
	}

	for _, member := range []string{aliceHex, bobHex} {
		rec = doJSON(t, handler, http.MethodPost, "/api/v1/intents/http-1/approve", voteBody{Account: acctHex, Caller: member})
		if rec.Code != http.StatusOK {
			t.Fatalf("approve %s status: %d body %s", member, rec.Code, rec.Body.String())
		}
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/intents/http-1/execute", executeBody{Account: acctHex})
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status: %d body %s", rec.Code, rec.Body.String())
	}

	balance, err := acctVault.Balance(coin)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 75 {
		t.Fatalf("expected balance 75 after spend, got %d", balance)
	}

	// 已销毁的意图不可再查。
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/intents/http-1?account="+acctHex, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get destroyed intent status: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/history?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status: %d", rec.Code)
	}
	var records []mysql.IntentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected audit records")
	}
}

func TestDeleteExpiredOverHTTP(t *testing.T) {
	server, acctVault, clock := newTestServer(t)
	handler := server.Handler()
	coin := common.HexToHash("0xc0ffee")
	acctVault.Deposit(coin, 100)

	payload, _ := json.Marshal(vault.SpendAction{Coin: coin, Amount: 10, Recipient: common.HexToAddress("0xcc")})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/intents", map[string]any{
		"account":         acctHex,
		"module":          vault.ModuleName,
		"proposer":        aliceHex,
		"key":             "stale",
		"execution_times": []int64{500},
		"expiration_time": 800,
		"payload":         json.RawMessage(payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("propose status: %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/intents/stale?account="+acctHex, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("premature delete status: %d", rec.Code)
	}

	clock.Set(800)
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/intents/stale?account="+acctHex, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status: %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	server, acctVault, _ := newTestServer(t)
	handler := server.Handler()
	coin := common.HexToHash("0xc0ffee")
	acctVault.Deposit(coin, 100)

	t.Run("invalid account address", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/intents?account=oops", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: %d", rec.Code)
		}
	})

	t.Run("unknown intent", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/intents/missing?account="+acctHex, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status: %d", rec.Code)
		}
	})

	t.Run("non member vote", func(t *testing.T) {
		rec := proposeSpend(t, handler, "vote-target", coin)
		if rec.Code != http.StatusCreated {
			t.Fatalf("propose status: %d", rec.Code)
		}
		rec = doJSON(t, handler, http.MethodPost, "/api/v1/intents/vote-target/approve", voteBody{
			Account: acctHex,
			Caller:  "0xdddddddddddddddddddddddddddddddddddddddd",
		})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status: %d body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("duplicate key conflict", func(t *testing.T) {
		other := common.HexToHash("0xbeef")
		acctVault.Deposit(other, 10)
		rec := proposeSpend(t, handler, "dup-key", other)
		if rec.Code != http.StatusCreated {
			t.Fatalf("propose status: %d", rec.Code)
		}
		third := common.HexToHash("0xf00d")
		acctVault.Deposit(third, 10)
		rec = proposeSpend(t, handler, "dup-key", third)
		if rec.Code != http.StatusConflict {
			t.Fatalf("duplicate propose status: %d body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: %d", rec.Code)
		}
	})

	t.Run("error body shape", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/intents/missing?account="+acctHex, nil)
		var body map[string]errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body["error"].Code == "" || body["error"].Message == "" {
			t.Fatalf("error body missing fields: %+v", body)
		}
	})
}

func TestStatsEndpoint(t *testing.T) {
	server, acctVault, clock := newTestServer(t)
	handler := server.Handler()
	coin := common.HexToHash("0xc0ffee")
	acctVault.Deposit(coin, 100)

	payload, _ := json.Marshal(vault.SpendAction{Coin: coin, Amount: 10, Recipient: common.HexToAddress("0xcc")})
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/intents", map[string]any{
		"account":         acctHex,
		"module":          vault.ModuleName,
		"proposer":        aliceHex,
		"key":             "stats-1",
		"execution_times": []int64{500},
		"expiration_time": 800,
		"payload":         json.RawMessage(payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("propose status: %d body %s", rec.Code, rec.Body.String())
	}

	fetch := func() account.IntentStats {
		t.Helper()
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/stats?account="+acctHex, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("stats status: %d body %s", rec.Code, rec.Body.String())
		}
		var stats account.IntentStats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		return stats
	}

	stats := fetch()
	if stats.Total != 1 || stats.Scheduled != 1 {
		t.Fatalf("expected one scheduled intent, got %+v", stats)
	}

	clock.Set(500)
	stats = fetch()
	if stats.Executable != 1 || stats.Scheduled != 0 {
		t.Fatalf("expected one executable intent, got %+v", stats)
	}

	clock.Set(800)
	stats = fetch()
	if stats.Expired != 1 || stats.Executable != 0 {
		t.Fatalf("expected one expired intent, got %+v", stats)
	}

	t.Run("unknown account", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/v1/stats?account=0xdddddddddddddddddddddddddddddddddddddddd", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status: %d", rec.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	handler := server.Handler()

	// 先打一个请求制造观测数据。
	_ = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/intents?account=%s", acctHex), nil)

	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("smartaccount_http_requests_total")) {
		t.Fatalf("metrics output missing counters: %s", rec.Body.String())
	}
}
