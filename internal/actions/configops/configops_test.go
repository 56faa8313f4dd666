package configops

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"SmartAccount-Chain/internal/account"
)

type allowAllPolicy struct{}

func (allowAllPolicy) Authenticate(acct, _ common.Address, _ account.Config) (account.Auth, error) {
	return account.NewAuth(acct), nil
}

func (allowAllPolicy) Validate(_ account.Outcome, _ account.Config) error {
	return nil
}

func newConfigAccount(t *testing.T) (*account.Account, *account.Allowlist) {
	t.Helper()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	entries := []account.Dep{
		{Name: account.CoreDepName, Addr: common.HexToAddress("0x01"), Version: 1},
		{Name: ModuleName, Addr: common.HexToAddress("0x02"), Version: 1},
	}
	allowlist := account.NewAllowlist(entries...)
	deps, err := account.NewDeps(allowlist, false, entries)
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	return account.New(addr, allowAllPolicy{}, nil, deps), allowlist
}

func configParams(key string) account.IntentParams {
	return account.IntentParams{Key: key, ExecutionTimes: []int64{0}, ExpirationTime: 1_000}
}

func mustAuth(t *testing.T, acct *account.Account) account.Auth {
	t.Helper()
	auth, err := acct.Authenticate(common.HexToAddress("0xaa"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return auth
}

func runIntent(t *testing.T, acct *account.Account, key string) {
	t.Helper()
	module := NewModule()
	exec, _, err := acct.ExecuteIntent(key, account.NewManualClock(0), ConfigWitness)
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}
	if err := module.Execute(context.Background(), acct, exec); err != nil {
		t.Fatalf("module execute: %v", err)
	}
	expired, err := acct.ConfirmExecution(exec, ConfigWitness)
	if err != nil {
		t.Fatalf("confirm execution: %v", err)
	}
	if expired != nil {
		if err := module.Cleanup(context.Background(), acct, expired); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
		if err := expired.DestroyEmpty(); err != nil {
			t.Fatalf("destroy empty: %v", err)
		}
	}
}

func TestMetadataUpdateLifecycle(t *testing.T) {
	acct, _ := newConfigAccount(t)
	actions := []UpdateMetadataAction{
		{Key: "name", Value: "treasury"},
		{Key: "env", Value: "prod"},
	}
	if err := RequestUpdateMetadata(acct, mustAuth(t, acct), configParams("meta"), nil, actions, account.NewManualClock(0)); err != nil {
		t.Fatalf("request update metadata: %v", err)
	}

	// 执行前元数据不可见。
	if _, ok := acct.Metadata("name"); ok {
		t.Fatal("metadata must not change before execution")
	}

	runIntent(t, acct, "meta")

	for _, action := range actions {
		value, ok := acct.Metadata(action.Key)
		if !ok || value != action.Value {
			t.Fatalf("metadata %s: got %q ok=%v", action.Key, value, ok)
		}
	}
}

func TestDepsUpdateLifecycle(t *testing.T) {
	acct, allowlist := newConfigAccount(t)

	newEntries := []account.Dep{
		{Name: account.CoreDepName, Addr: common.HexToAddress("0x01"), Version: 1},
		{Name: ModuleName, Addr: common.HexToAddress("0x02"), Version: 2},
	}
	if err := RequestUpdateDeps(acct, mustAuth(t, acct), configParams("deps"), nil, allowlist, false, newEntries, account.NewManualClock(0)); err != nil {
		t.Fatalf("request update deps: %v", err)
	}

	runIntent(t, acct, "deps")

	dep, err := acct.Deps().Get(ModuleName)
	if err != nil {
		t.Fatalf("get dep: %v", err)
	}
	if dep.Version != 2 {
		t.Fatalf("expected version 2 after update, got %d", dep.Version)
	}
}

func TestDepsUpdateValidatesAtRequestTime(t *testing.T) {
	acct, allowlist := newConfigAccount(t)

	// 缺少核心协议模块的列表在请求阶段即被拒绝。
	bad := []account.Dep{{Name: ModuleName, Addr: common.HexToAddress("0x02"), Version: 1}}
	err := RequestUpdateDeps(acct, mustAuth(t, acct), configParams("bad"), nil, allowlist, false, bad, account.NewManualClock(0))
	if !errors.Is(err, account.ErrAccountProtocolMissing) {
		t.Fatalf("expected ErrAccountProtocolMissing, got %v", err)
	}
	if _, viewErr := acct.IntentView("bad"); !errors.Is(viewErr, account.ErrIntentNotFound) {
		t.Fatalf("rejected request must not leave an intent behind, got %v", viewErr)
	}
}

func TestConfigUpdateLifecycle(t *testing.T) {
	acct, _ := newConfigAccount(t)

	type policyState struct{ Threshold int }
	if err := RequestUpdateConfig(acct, mustAuth(t, acct), configParams("cfg"), nil, &policyState{Threshold: 3}, account.NewManualClock(0)); err != nil {
		t.Fatalf("request update config: %v", err)
	}

	runIntent(t, acct, "cfg")

	state, ok := acct.ConfigState().(*policyState)
	if !ok || state.Threshold != 3 {
		t.Fatalf("unexpected config state: %#v", acct.ConfigState())
	}
}

func TestMixedActionsDispatch(t *testing.T) {
	acct, _ := newConfigAccount(t)
	auth := mustAuth(t, acct)

	intent, err := acct.CreateIntent(auth, configParams("mixed"), nil, ConfigWitness, account.NewManualClock(0))
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	intent.AddAction(UpdateMetadataAction{Key: "a", Value: "1"})
	intent.AddAction(UpdateMetadataAction{Key: "b", Value: "2"})
	if err := acct.AddIntent(intent, ConfigWitness); err != nil {
		t.Fatalf("add intent: %v", err)
	}

	runIntent(t, acct, "mixed")

	if v, _ := acct.Metadata("a"); v != "1" {
		t.Fatalf("metadata a: %q", v)
	}
	if v, _ := acct.Metadata("b"); v != "2" {
		t.Fatalf("metadata b: %q", v)
	}
}

func TestModuleProposePayload(t *testing.T) {
	acct, _ := newConfigAccount(t)
	module := NewModule()

	payload, err := json.Marshal(map[string]any{
		"metadata": []UpdateMetadataAction{{Key: "name", Value: "ops"}},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := module.Propose(context.Background(), acct, mustAuth(t, acct), configParams("api"), nil, payload, account.NewManualClock(0)); err != nil {
		t.Fatalf("propose: %v", err)
	}
	view, err := acct.IntentView("api")
	if err != nil {
		t.Fatalf("intent view: %v", err)
	}
	if view.ActionCount != 1 {
		t.Fatalf("expected 1 action, got %d", view.ActionCount)
	}

	t.Run("empty payload rejected", func(t *testing.T) {
		if err := module.Propose(context.Background(), acct, mustAuth(t, acct), configParams("empty"), nil, []byte(`{}`), account.NewManualClock(0)); err == nil {
			t.Fatal("expected empty payload to be rejected")
		}
	})

	t.Run("blank key rejected", func(t *testing.T) {
		bad, _ := json.Marshal(map[string]any{"metadata": []UpdateMetadataAction{{Key: "", Value: "x"}}})
		if err := module.Propose(context.Background(), acct, mustAuth(t, acct), configParams("blank"), nil, bad, account.NewManualClock(0)); err == nil {
			t.Fatal("expected blank key to be rejected")
		}
	})
}
