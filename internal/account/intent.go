package account

// Action 是挂载在意图上的一个不透明动作载荷。引擎只维护顺序与计数，
// 载荷内容由创建它的动作模块解释。
type Action any

// DeriveRole 由模块名与账户配置内的角色名推导审批路由角色。
func DeriveRole(w Witness, roleName string) string {
	if roleName == "" {
		return w.Module
	}
	return w.Module + "/" + roleName
}

// IntentParams 描述创建意图所需的调用方参数。
type IntentParams struct {
	Key            string
	Description    string
	ExecutionTimes []int64
	ExpirationTime int64
	RoleName       string
}

// Intent 表示一批等待审批与定时执行的动作提案。
// 创建后仅允许两类变更：插入注册表前追加动作，以及策略模块对 outcome
// 的审批记账。
type Intent struct {
	issuer         Issuer
	key            string
	description    string
	executionTimes []int64
	expirationTime int64
	role           string
	actions        []Action
	outcome        Outcome
	createdAt      int64
}

// newIntent 校验参数并构造意图。时间均为 unix 毫秒。
func newIntent(issuer Issuer, p IntentParams, outcome Outcome, now int64) (*Intent, error) {
	if len(p.ExecutionTimes) == 0 {
		return nil, ErrNoExecutionTime
	}
	for i := 1; i < len(p.ExecutionTimes); i++ {
		if p.ExecutionTimes[i] <= p.ExecutionTimes[i-1] {
			return nil, ErrTimesNotAscending
		}
	}
	role := DeriveRole(issuer.witness, p.RoleName)
	times := make([]int64, len(p.ExecutionTimes))
	copy(times, p.ExecutionTimes)
	return &Intent{
		issuer:         issuer,
		key:            p.Key,
		description:    p.Description,
		executionTimes: times,
		expirationTime: p.ExpirationTime,
		role:           role,
		outcome:        outcome,
		createdAt:      now,
	}, nil
}

// AddAction 将动作追加到列表末尾。下标即当前长度，列表只增不排。
func (i *Intent) AddAction(action Action) int {
	i.actions = append(i.actions, action)
	return len(i.actions) - 1
}

// popFrontExecutionTime 移除并返回最早的执行时间。
// 多时间点的意图由此实现周期执行：每次执行弹出一个时间点而非销毁整条记录。
func (i *Intent) popFrontExecutionTime() int64 {
	front := i.executionTimes[0]
	i.executionTimes = i.executionTimes[1:]
	return front
}

// restoreFrontExecutionTime 把执行失败回滚的时间点放回队首。
// 该时间点只能是本轮刚弹出的队首，放回后列表仍保持严格递增。
func (i *Intent) restoreFrontExecutionTime(t int64) {
	i.executionTimes = append([]int64{t}, i.executionTimes...)
}

// Issuer 返回意图的来源记录。
func (i *Intent) Issuer() Issuer { return i.issuer }

// Key 返回意图在账户内的唯一标识。
func (i *Intent) Key() string { return i.key }

// Description 返回意图描述。
func (i *Intent) Description() string { return i.description }

// Role 返回用于审批路由的角色标识。
func (i *Intent) Role() string { return i.role }

// ExpirationTime 返回过期时间。
func (i *Intent) ExpirationTime() int64 { return i.expirationTime }

// CreatedAt 返回创建时间。
func (i *Intent) CreatedAt() int64 { return i.createdAt }

// ExecutionTimes 返回剩余执行时间点的副本。
func (i *Intent) ExecutionTimes() []int64 {
	times := make([]int64, len(i.executionTimes))
	copy(times, i.executionTimes)
	return times
}

// ActionCount 返回动作数量。
func (i *Intent) ActionCount() int { return len(i.actions) }

// Outcome 返回策略审批状态。
func (i *Intent) Outcome() Outcome { return i.outcome }

// View 是意图的只读快照，供服务层与 API 层展示。
type View struct {
	Account        string  `json:"account"`
	Key            string  `json:"key"`
	Description    string  `json:"description,omitempty"`
	Role           string  `json:"role"`
	ExecutionTimes []int64 `json:"execution_times"`
	ExpirationTime int64   `json:"expiration_time"`
	ActionCount    int     `json:"action_count"`
	CreatedAt      int64   `json:"created_at"`
	Outcome        Outcome `json:"outcome,omitempty"`
}

func (i *Intent) view() View {
	return View{
		Account:        i.issuer.account.Hex(),
		Key:            i.key,
		Description:    i.description,
		Role:           i.role,
		ExecutionTimes: i.ExecutionTimes(),
		ExpirationTime: i.expirationTime,
		ActionCount:    len(i.actions),
		CreatedAt:      i.createdAt,
		Outcome:        i.outcome,
	}
}
