package account

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Account 是多方智能账户的核心：持有唯一的意图注册表、依赖白名单、
// 不透明的策略状态与元数据，并负责 创建 → 审批(外部) → 执行 → 确认 →
// 过期 的全部状态迁移。注册表的所有变更都经由本类型的方法在互斥锁内
// 完成，账户外不存在其它变更路径。
type Account struct {
	mu       sync.Mutex
	addr     common.Address
	metadata map[string]string
	deps     *Deps
	config   Config
	policy   Policy
	registry *intents
}

// New 创建账户。策略状态与策略实现由策略模块的构造入口提供。
func New(addr common.Address, policy Policy, cfg Config, deps *Deps) *Account {
	return &Account{
		addr:     addr,
		metadata: make(map[string]string),
		deps:     deps,
		config:   cfg,
		policy:   policy,
		registry: newIntents(),
	}
}

// Address 返回账户地址。
func (a *Account) Address() common.Address {
	return a.addr
}

// Authenticate 请求策略模块认证调用方身份。
func (a *Account) Authenticate(caller common.Address) (Auth, error) {
	a.mu.Lock()
	cfg := a.config
	a.mu.Unlock()
	return a.policy.Authenticate(a.addr, caller, cfg)
}

// CreateIntent 构造一条尚未挂载到注册表的意图。调用方随后需要附加动作
// 并调用 AddIntent 才算提案生效。
func (a *Account) CreateIntent(auth Auth, p IntentParams, outcome Outcome, w Witness, clock Clock) (*Intent, error) {
	if auth.account != a.addr {
		return nil, ErrWrongAccount
	}
	if w.IsZero() {
		return nil, ErrWrongWitness
	}
	issuer := newIssuer(a.addr, p.Key, w)
	return newIntent(issuer, p, outcome, clock.Now())
}

// AddIntent 将意图挂载到注册表，此后提案对审批方可见。
func (a *Account) AddIntent(intent *Intent, w Witness) error {
	if err := intent.issuer.AssertIsAccount(a.addr); err != nil {
		return err
	}
	if err := intent.issuer.AssertIsIntent(w); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.deps.Check(w.Module); err != nil {
		return err
	}
	return a.registry.add(intent)
}

// UpdateOutcome 是策略模块对意图审批状态的唯一写入口。
func (a *Account) UpdateOutcome(auth Auth, key string, fn func(Outcome) (Outcome, error)) error {
	if auth.account != a.addr {
		return ErrWrongAccount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(key)
	if err != nil {
		return err
	}
	updated, err := fn(intent.outcome)
	if err != nil {
		return err
	}
	intent.outcome = updated
	return nil
}

// ExecuteIntent 是 "该批动作是否已获授权" 与 "是否已到执行时间" 的唯一
// 汇合点。两项检查都通过后弹出最早的执行时间并签发执行令牌。
// 校验先于一切变更，失败时注册表保持原状。
func (a *Account) ExecuteIntent(key string, clock Clock, w Witness) (*Executable, Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	intent, err := a.registry.get(key)
	if err != nil {
		return nil, nil, err
	}
	if err := intent.issuer.AssertIsIntent(w); err != nil {
		return nil, nil, err
	}
	if err := a.deps.Check(w.Module); err != nil {
		return nil, nil, err
	}
	// 时间点已全部弹出但尚未确认销毁的意图不允许再次执行。
	if len(intent.executionTimes) == 0 || clock.Now() < intent.executionTimes[0] {
		return nil, nil, ErrCantBeExecutedYet
	}
	if err := a.policy.Validate(intent.outcome, a.config); err != nil {
		return nil, nil, err
	}
	scheduled := intent.popFrontExecutionTime()
	return newExecutable(intent.issuer, len(intent.actions), scheduled), cloneOutcome(intent.outcome), nil
}

// AbortExecution 回滚一次失败的执行回合：把执行令牌携带的时间点放回
// 队首并作废令牌。动作处理中途失败时调用，保证意图回到执行前的状态，
// 后续仍可重试或走过期清理。
func (a *Account) AbortExecution(exec *Executable, w Witness) error {
	if err := exec.issuer.AssertIsAccount(a.addr); err != nil {
		return err
	}
	if err := exec.issuer.AssertIsIntent(w); err != nil {
		return err
	}
	if exec.consumed {
		return ErrExecutableConsumed
	}
	exec.consumed = true

	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(exec.issuer.intentKey)
	if err != nil {
		return err
	}
	intent.restoreFrontExecutionTime(exec.scheduledAt)
	return nil
}

// ProcessAction 取出执行令牌当前下标处的动作，校验来源后前移下标，
// 并以调用方期望的具体类型返回载荷。
func ProcessAction[A any](a *Account, exec *Executable, w Witness) (A, error) {
	var zero A
	if err := exec.issuer.AssertIsAccount(a.addr); err != nil {
		return zero, err
	}
	if err := exec.issuer.AssertIsIntent(w); err != nil {
		return zero, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(exec.issuer.intentKey)
	if err != nil {
		return zero, err
	}
	idx := exec.actionIdx
	if idx >= len(intent.actions) {
		return zero, ErrActionsDrained
	}
	payload, ok := intent.actions[idx].(A)
	if !ok {
		return zero, ErrWrongActionType
	}
	exec.actionIdx++
	return payload, nil
}

// ConfirmExecution 断言每个动作都已被处理，随后销毁执行令牌。
// 意图没有剩余执行时间时整条销毁，动作包交还调用方走各模块的清理函数；
// 仍有时间点时保留在注册表内等待下一次执行，返回 nil 包。
func (a *Account) ConfirmExecution(exec *Executable, w Witness) (*Expired, error) {
	if err := exec.issuer.AssertIsAccount(a.addr); err != nil {
		return nil, err
	}
	if err := exec.issuer.AssertIsIntent(w); err != nil {
		return nil, err
	}
	if err := exec.assertExhausted(); err != nil {
		return nil, err
	}
	exec.consumed = true

	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(exec.issuer.intentKey)
	if err != nil {
		return nil, err
	}
	if len(intent.executionTimes) > 0 {
		return nil, nil
	}
	removed, err := a.registry.remove(intent.key)
	if err != nil {
		return nil, err
	}
	return newExpired(removed), nil
}

// DeleteExpiredIntent 是未能在过期时间前执行的意图的清理路径。
func (a *Account) DeleteExpiredIntent(key string, clock Clock) (*Expired, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(key)
	if err != nil {
		return nil, err
	}
	if clock.Now() < intent.expirationTime {
		return nil, ErrHasntExpired
	}
	removed, err := a.registry.remove(key)
	if err != nil {
		return nil, err
	}
	return newExpired(removed), nil
}

// DestroyEmptyIntent 清理已无动作的意图。仍有待执行时间点时拒绝。
func (a *Account) DestroyEmptyIntent(key string) (*Expired, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(key)
	if err != nil {
		return nil, err
	}
	if len(intent.executionTimes) > 0 {
		return nil, ErrCantBeRemovedYet
	}
	if len(intent.actions) > 0 {
		return nil, ErrActionsNotEmpty
	}
	removed, err := a.registry.remove(key)
	if err != nil {
		return nil, err
	}
	return newExpired(removed), nil
}

// LockObject 为某条意图预定一个账户拥有的对象。预定发生在意图创建阶段，
// 由包含取用类动作的模块调用，用于阻止两条待决意图争用同一资源。
func (a *Account) LockObject(id common.Hash) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.lock(id)
}

// UnlockObject 在清理阶段释放对象锁。
func (a *Account) UnlockObject(id common.Hash) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.unlock(id)
}

// IsLocked 查询对象是否被某条待决意图锁定。
func (a *Account) IsLocked(id common.Hash) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.isLocked(id)
}

// IntentView 返回指定意图的只读快照。
func (a *Account) IntentView(key string) (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(key)
	if err != nil {
		return View{}, err
	}
	return intent.view(), nil
}

// Views 返回全部存活意图的只读快照，按挂载顺序排列。
func (a *Account) Views() []View {
	a.mu.Lock()
	defer a.mu.Unlock()
	views := make([]View, 0, a.registry.len())
	for _, intent := range a.registry.order {
		views = append(views, intent.view())
	}
	return views
}

// IntentWitness 返回创建指定意图时使用的凭证，供服务层路由到对应模块。
func (a *Account) IntentWitness(key string) (Witness, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	intent, err := a.registry.get(key)
	if err != nil {
		return Witness{}, err
	}
	return intent.issuer.witness, nil
}

// IntentKeys 返回全部存活意图的 key。
func (a *Account) IntentKeys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.keys()
}

// IntentCount 返回存活意图数量。
func (a *Account) IntentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.len()
}

// Deps 返回依赖白名单。
func (a *Account) Deps() *Deps {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deps
}

// ReplaceDeps 替换依赖白名单。只应由配置类动作在执行阶段调用。
func (a *Account) ReplaceDeps(deps *Deps) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deps = deps
}

// ConfigState 返回不透明的策略状态。
func (a *Account) ConfigState() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config
}

// ReplaceConfig 替换策略状态。只应由配置类动作在执行阶段调用。
func (a *Account) ReplaceConfig(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
}

// Metadata 返回元数据项。
func (a *Account) Metadata(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	value, ok := a.metadata[key]
	return value, ok
}

// SetMetadata 写入元数据项。只应由配置类动作在执行阶段调用。
func (a *Account) SetMetadata(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

// cloneOutcome 在策略实现了克隆接口时返回审批状态的独立副本。
func cloneOutcome(outcome Outcome) Outcome {
	type cloner interface{ CloneOutcome() Outcome }
	if c, ok := outcome.(cloner); ok {
		return c.CloneOutcome()
	}
	return outcome
}
