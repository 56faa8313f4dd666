package account

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SmartAccount-Chain/internal/errors"
)

const testModuleName = "TestModule"

var testWitness = NewWitness(testModuleName, "TestIntent")

// testPolicyState 是测试用的最小策略状态：一个放行开关。
type testPolicyState struct {
	allow bool
}

type testPolicy struct{}

func (testPolicy) Authenticate(acct, _ common.Address, _ Config) (Auth, error) {
	return NewAuth(acct), nil
}

func (testPolicy) Validate(_ Outcome, cfg Config) error {
	state, ok := cfg.(*testPolicyState)
	if !ok || !state.allow {
		return xerrors.New(xerrors.CodePermissionDenied, "intent not approved")
	}
	return nil
}

type testAction struct {
	Value int
}

func newTestAccount(t *testing.T, allow bool) *Account {
	t.Helper()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	entries := []Dep{
		{Name: CoreDepName, Addr: common.HexToAddress("0x01"), Version: 1},
		{Name: testModuleName, Addr: common.HexToAddress("0x02"), Version: 1},
	}
	deps, err := NewDeps(NewAllowlist(entries...), false, entries)
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	return New(addr, testPolicy{}, &testPolicyState{allow: allow}, deps)
}

func mustAuth(t *testing.T, acct *Account) Auth {
	t.Helper()
	auth, err := acct.Authenticate(common.HexToAddress("0xaa"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return auth
}

func proposeIntent(t *testing.T, acct *Account, key string, times []int64, expiry int64, actions ...Action) {
	t.Helper()
	auth := mustAuth(t, acct)
	p := IntentParams{Key: key, ExecutionTimes: times, ExpirationTime: expiry}
	intent, err := acct.CreateIntent(auth, p, nil, testWitness, NewManualClock(0))
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	for _, action := range actions {
		intent.AddAction(action)
	}
	if err := acct.AddIntent(intent, testWitness); err != nil {
		t.Fatalf("add intent: %v", err)
	}
}

func TestCreateIntentValidation(t *testing.T) {
	acct := newTestAccount(t, true)
	auth := mustAuth(t, acct)
	clock := NewManualClock(0)

	t.Run("empty execution times", func(t *testing.T) {
		_, err := acct.CreateIntent(auth, IntentParams{Key: "a"}, nil, testWitness, clock)
		if !errors.Is(err, ErrNoExecutionTime) {
			t.Fatalf("expected ErrNoExecutionTime, got %v", err)
		}
	})

	t.Run("non ascending times", func(t *testing.T) {
		p := IntentParams{Key: "a", ExecutionTimes: []int64{5, 3}}
		_, err := acct.CreateIntent(auth, p, nil, testWitness, clock)
		if !errors.Is(err, ErrTimesNotAscending) {
			t.Fatalf("expected ErrTimesNotAscending, got %v", err)
		}
	})

	t.Run("equal times rejected", func(t *testing.T) {
		p := IntentParams{Key: "a", ExecutionTimes: []int64{5, 5}}
		_, err := acct.CreateIntent(auth, p, nil, testWitness, clock)
		if !errors.Is(err, ErrTimesNotAscending) {
			t.Fatalf("expected ErrTimesNotAscending, got %v", err)
		}
	})

	t.Run("foreign auth", func(t *testing.T) {
		foreign := NewAuth(common.HexToAddress("0x99"))
		p := IntentParams{Key: "a", ExecutionTimes: []int64{0}}
		_, err := acct.CreateIntent(foreign, p, nil, testWitness, clock)
		if !errors.Is(err, ErrWrongAccount) {
			t.Fatalf("expected ErrWrongAccount, got %v", err)
		}
	})

	t.Run("zero witness", func(t *testing.T) {
		p := IntentParams{Key: "a", ExecutionTimes: []int64{0}}
		_, err := acct.CreateIntent(auth, p, nil, Witness{}, clock)
		if !errors.Is(err, ErrWrongWitness) {
			t.Fatalf("expected ErrWrongWitness, got %v", err)
		}
	})
}

func TestAddIntentGuards(t *testing.T) {
	acct := newTestAccount(t, true)
	auth := mustAuth(t, acct)
	clock := NewManualClock(0)
	p := IntentParams{Key: "dup", ExecutionTimes: []int64{0}}

	t.Run("witness mismatch", func(t *testing.T) {
		intent, err := acct.CreateIntent(auth, p, nil, testWitness, clock)
		if err != nil {
			t.Fatalf("create intent: %v", err)
		}
		other := NewWitness(testModuleName, "OtherKind")
		if err := acct.AddIntent(intent, other); !errors.Is(err, ErrWrongWitness) {
			t.Fatalf("expected ErrWrongWitness, got %v", err)
		}
	})

	t.Run("module not a dep", func(t *testing.T) {
		rogue := NewWitness("RogueModule", "Intent")
		intent, err := acct.CreateIntent(auth, IntentParams{Key: "rogue", ExecutionTimes: []int64{0}}, nil, rogue, clock)
		if err != nil {
			t.Fatalf("create intent: %v", err)
		}
		if err := acct.AddIntent(intent, rogue); !errors.Is(err, ErrNotDep) {
			t.Fatalf("expected ErrNotDep, got %v", err)
		}
	})

	t.Run("duplicate key", func(t *testing.T) {
		proposeIntent(t, acct, "dup", []int64{0}, 100)
		intent, err := acct.CreateIntent(auth, p, nil, testWitness, clock)
		if err != nil {
			t.Fatalf("create intent: %v", err)
		}
		if err := acct.AddIntent(intent, testWitness); !errors.Is(err, ErrKeyAlreadyExists) {
			t.Fatalf("expected ErrKeyAlreadyExists, got %v", err)
		}
	})
}

func TestExecuteIntentTemporalGate(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "later", []int64{100}, 1000, testAction{Value: 1})
	clock := NewManualClock(50)

	if _, _, err := acct.ExecuteIntent("later", clock, testWitness); !errors.Is(err, ErrCantBeExecutedYet) {
		t.Fatalf("expected ErrCantBeExecutedYet, got %v", err)
	}

	// 失败的执行不得弹出时间点。
	view, err := acct.IntentView("later")
	if err != nil {
		t.Fatalf("intent view: %v", err)
	}
	if len(view.ExecutionTimes) != 1 || view.ExecutionTimes[0] != 100 {
		t.Fatalf("execution times mutated by failed execute: %v", view.ExecutionTimes)
	}

	clock.Set(100)
	if _, _, err := acct.ExecuteIntent("later", clock, testWitness); err != nil {
		t.Fatalf("execute at window open: %v", err)
	}
}

func TestAbortExecutionRestoresSchedule(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "abort", []int64{100}, 1000, testAction{Value: 1})
	clock := NewManualClock(100)

	exec, _, err := acct.ExecuteIntent("abort", clock, testWitness)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	t.Run("witness mismatch", func(t *testing.T) {
		wrong := NewWitness("OtherModule", "OtherIntent")
		if err := acct.AbortExecution(exec, wrong); !errors.Is(err, ErrWrongWitness) {
			t.Fatalf("expected ErrWrongWitness, got %v", err)
		}
	})

	if err := acct.AbortExecution(exec, testWitness); err != nil {
		t.Fatalf("abort: %v", err)
	}

	// 回滚后时间点回到队首，意图可以重试。
	view, err := acct.IntentView("abort")
	if err != nil {
		t.Fatalf("intent view: %v", err)
	}
	if len(view.ExecutionTimes) != 1 || view.ExecutionTimes[0] != 100 {
		t.Fatalf("execution times not restored: %v", view.ExecutionTimes)
	}

	// 作废的令牌不能再被回滚或确认。
	if err := acct.AbortExecution(exec, testWitness); !errors.Is(err, ErrExecutableConsumed) {
		t.Fatalf("expected ErrExecutableConsumed on second abort, got %v", err)
	}
	if _, err := acct.ConfirmExecution(exec, testWitness); !errors.Is(err, ErrExecutableConsumed) {
		t.Fatalf("expected ErrExecutableConsumed on confirm, got %v", err)
	}

	retry, _, err := acct.ExecuteIntent("abort", clock, testWitness)
	if err != nil {
		t.Fatalf("retry execute: %v", err)
	}
	if _, err := ProcessAction[testAction](acct, retry, testWitness); err != nil {
		t.Fatalf("process action on retry: %v", err)
	}
	if _, err := acct.ConfirmExecution(retry, testWitness); err != nil {
		t.Fatalf("confirm retry: %v", err)
	}
}

func TestExecuteIntentPolicyGate(t *testing.T) {
	acct := newTestAccount(t, false)
	proposeIntent(t, acct, "pending", []int64{0}, 1000, testAction{Value: 1})

	_, _, err := acct.ExecuteIntent("pending", NewManualClock(10), testWitness)
	if xerrors.CodeOf(err) != xerrors.CodePermissionDenied {
		t.Fatalf("expected policy rejection, got %v", err)
	}

	// 策略拒绝同样不得弹出时间点。
	view, err := acct.IntentView("pending")
	if err != nil {
		t.Fatalf("intent view: %v", err)
	}
	if len(view.ExecutionTimes) != 1 {
		t.Fatalf("execution times mutated by rejected execute: %v", view.ExecutionTimes)
	}
}

func TestLifecycleRoundTrip(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "round", []int64{0}, 1, testAction{Value: 1}, testAction{Value: 2})
	clock := NewManualClock(0)

	exec, _, err := acct.ExecuteIntent("round", clock, testWitness)
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}

	first, err := ProcessAction[testAction](acct, exec, testWitness)
	if err != nil {
		t.Fatalf("process first action: %v", err)
	}
	if first.Value != 1 {
		t.Fatalf("unexpected first action: %+v", first)
	}
	second, err := ProcessAction[testAction](acct, exec, testWitness)
	if err != nil {
		t.Fatalf("process second action: %v", err)
	}
	if second.Value != 2 {
		t.Fatalf("unexpected second action: %+v", second)
	}
	if _, err := ProcessAction[testAction](acct, exec, testWitness); !errors.Is(err, ErrActionsDrained) {
		t.Fatalf("expected ErrActionsDrained, got %v", err)
	}

	expired, err := acct.ConfirmExecution(exec, testWitness)
	if err != nil {
		t.Fatalf("confirm execution: %v", err)
	}
	if expired == nil {
		t.Fatal("expected intent to be destroyed after last occurrence")
	}
	if expired.ActionsLeft() != 2 {
		t.Fatalf("expected 2 actions handed back, got %d", expired.ActionsLeft())
	}
	for expired.ActionsLeft() > 0 {
		if _, err := RemoveActionAs[testAction](expired); err != nil {
			t.Fatalf("remove action: %v", err)
		}
	}
	if err := expired.DestroyEmpty(); err != nil {
		t.Fatalf("destroy empty: %v", err)
	}
	if _, err := acct.IntentView("round"); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("expected intent gone, got %v", err)
	}
}

func TestConfirmExecutionGuards(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "guard", []int64{0}, 1, testAction{Value: 1})
	clock := NewManualClock(0)

	exec, _, err := acct.ExecuteIntent("guard", clock, testWitness)
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}

	if _, err := acct.ConfirmExecution(exec, testWitness); !errors.Is(err, ErrActionsRemaining) {
		t.Fatalf("expected ErrActionsRemaining, got %v", err)
	}

	if _, err := ProcessAction[testAction](acct, exec, testWitness); err != nil {
		t.Fatalf("process action: %v", err)
	}
	if _, err := acct.ConfirmExecution(exec, testWitness); err != nil {
		t.Fatalf("confirm execution: %v", err)
	}
	if _, err := acct.ConfirmExecution(exec, testWitness); !errors.Is(err, ErrExecutableConsumed) {
		t.Fatalf("expected ErrExecutableConsumed, got %v", err)
	}
}

func TestRecurringIntent(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "recurring", []int64{0, 10}, 1000, testAction{Value: 7})
	clock := NewManualClock(0)

	exec, _, err := acct.ExecuteIntent("recurring", clock, testWitness)
	if err != nil {
		t.Fatalf("first occurrence: %v", err)
	}
	if _, err := ProcessAction[testAction](acct, exec, testWitness); err != nil {
		t.Fatalf("process action: %v", err)
	}
	expired, err := acct.ConfirmExecution(exec, testWitness)
	if err != nil {
		t.Fatalf("confirm first occurrence: %v", err)
	}
	if expired != nil {
		t.Fatal("intent with remaining times must stay live")
	}

	view, err := acct.IntentView("recurring")
	if err != nil {
		t.Fatalf("intent view: %v", err)
	}
	if len(view.ExecutionTimes) != 1 || view.ExecutionTimes[0] != 10 {
		t.Fatalf("expected remaining time [10], got %v", view.ExecutionTimes)
	}

	clock.Set(5)
	if _, _, err := acct.ExecuteIntent("recurring", clock, testWitness); !errors.Is(err, ErrCantBeExecutedYet) {
		t.Fatalf("expected ErrCantBeExecutedYet before second window, got %v", err)
	}

	clock.Set(10)
	exec, _, err = acct.ExecuteIntent("recurring", clock, testWitness)
	if err != nil {
		t.Fatalf("second occurrence: %v", err)
	}
	if _, err := ProcessAction[testAction](acct, exec, testWitness); err != nil {
		t.Fatalf("process action: %v", err)
	}
	expired, err = acct.ConfirmExecution(exec, testWitness)
	if err != nil {
		t.Fatalf("confirm second occurrence: %v", err)
	}
	if expired == nil {
		t.Fatal("expected destruction after last occurrence")
	}
}

func TestDeleteExpiredIntent(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "stale", []int64{0}, 100, testAction{Value: 1})
	clock := NewManualClock(50)

	if _, err := acct.DeleteExpiredIntent("stale", clock); !errors.Is(err, ErrHasntExpired) {
		t.Fatalf("expected ErrHasntExpired, got %v", err)
	}

	clock.Set(100)
	expired, err := acct.DeleteExpiredIntent("stale", clock)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if expired.StartIndex() != 0 || expired.ActionsLeft() != 1 {
		t.Fatalf("expected full action bag, got start=%d left=%d", expired.StartIndex(), expired.ActionsLeft())
	}
	if err := expired.DestroyEmpty(); !errors.Is(err, ErrActionsNotEmpty) {
		t.Fatalf("expected ErrActionsNotEmpty, got %v", err)
	}
}

func TestDestroyEmptyIntent(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "pending-times", []int64{0, 10}, 1000)

	if _, err := acct.DestroyEmptyIntent("pending-times"); !errors.Is(err, ErrCantBeRemovedYet) {
		t.Fatalf("expected ErrCantBeRemovedYet, got %v", err)
	}

	proposeIntent(t, acct, "drainable", []int64{0}, 1000)
	exec, _, err := acct.ExecuteIntent("drainable", NewManualClock(0), testWitness)
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}
	if _, err := acct.ConfirmExecution(exec, testWitness); err != nil {
		t.Fatalf("confirm execution: %v", err)
	}
	// 无动作、无剩余时间的意图在确认时即被销毁。
	if _, err := acct.DestroyEmptyIntent("drainable"); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("expected intent already destroyed, got %v", err)
	}
}

func TestObjectLocking(t *testing.T) {
	acct := newTestAccount(t, true)
	id := common.HexToHash("0xdead")

	if acct.IsLocked(id) {
		t.Fatal("object must start unlocked")
	}
	if err := acct.LockObject(id); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !acct.IsLocked(id) {
		t.Fatal("object must report locked")
	}
	if err := acct.LockObject(id); !errors.Is(err, ErrObjectAlreadyLocked) {
		t.Fatalf("expected ErrObjectAlreadyLocked, got %v", err)
	}
	if err := acct.UnlockObject(id); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := acct.UnlockObject(id); !errors.Is(err, ErrObjectNotLocked) {
		t.Fatalf("expected ErrObjectNotLocked, got %v", err)
	}
}

func TestProcessActionWrongType(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "typed", []int64{0}, 1000, testAction{Value: 3})

	exec, _, err := acct.ExecuteIntent("typed", NewManualClock(0), testWitness)
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}

	if _, err := ProcessAction[string](acct, exec, testWitness); !errors.Is(err, ErrWrongActionType) {
		t.Fatalf("expected ErrWrongActionType, got %v", err)
	}
	// 类型不符不得推进下标。
	action, err := ProcessAction[testAction](acct, exec, testWitness)
	if err != nil {
		t.Fatalf("process with correct type: %v", err)
	}
	if action.Value != 3 {
		t.Fatalf("unexpected action: %+v", action)
	}
}

func TestProcessActionWitnessGuard(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "guarded", []int64{0}, 1000, testAction{Value: 1})

	exec, _, err := acct.ExecuteIntent("guarded", NewManualClock(0), testWitness)
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}
	other := NewWitness("OtherModule", "Intent")
	if _, err := ProcessAction[testAction](acct, exec, other); !errors.Is(err, ErrWrongWitness) {
		t.Fatalf("expected ErrWrongWitness, got %v", err)
	}
}

func TestUpdateOutcomeAuthGuard(t *testing.T) {
	acct := newTestAccount(t, true)
	proposeIntent(t, acct, "votable", []int64{0}, 1000)

	foreign := NewAuth(common.HexToAddress("0x99"))
	err := acct.UpdateOutcome(foreign, "votable", func(o Outcome) (Outcome, error) { return o, nil })
	if !errors.Is(err, ErrWrongAccount) {
		t.Fatalf("expected ErrWrongAccount, got %v", err)
	}
}

func TestWitnessIdentity(t *testing.T) {
	w := NewWitness("Mod", "Kind")
	if w.String() != "Mod::Kind" {
		t.Fatalf("unexpected canonical form: %s", w.String())
	}
	if w.Digest() == (common.Hash{}) {
		t.Fatal("digest must not be zero")
	}
	if !(Witness{}).IsZero() {
		t.Fatal("zero witness must report IsZero")
	}
	if NewWitness("Mod", "Kind") != w {
		t.Fatal("witnesses with equal fields must compare equal")
	}
}

func TestDeriveRole(t *testing.T) {
	w := NewWitness("AccountVault", "SpendIntent")
	if got := DeriveRole(w, ""); got != "AccountVault" {
		t.Fatalf("unexpected default role: %s", got)
	}
	if got := DeriveRole(w, "treasury"); got != "AccountVault/treasury" {
		t.Fatalf("unexpected named role: %s", got)
	}
}
