package account

// Expired 包裹被删除或过期意图的剩余动作。每个动作模块必须用 RemoveAction
// 取走并销毁自己的动作；包非空时 DestroyEmpty 会拒绝，保证没有任何动作
// 载荷（例如仍持有对象锁的引用）被悄悄丢弃。
type Expired struct {
	key        string
	issuer     Issuer
	startIndex int
	actions    []Action
}

func newExpired(intent *Intent) *Expired {
	return &Expired{
		key:        intent.key,
		issuer:     intent.issuer,
		startIndex: 0,
		actions:    intent.actions,
	}
}

// Key 返回原意图的 key。
func (e *Expired) Key() string {
	return e.key
}

// Issuer 返回原意图的来源记录。
func (e *Expired) Issuer() Issuer {
	return e.issuer
}

// StartIndex 返回下一个待取动作在原列表中的下标。
func (e *Expired) StartIndex() int {
	return e.startIndex
}

// ActionsLeft 返回尚未取走的动作数量。
func (e *Expired) ActionsLeft() int {
	return len(e.actions)
}

// RemoveAction 按原顺序取走下一个动作，交由其所属模块销毁。
func (e *Expired) RemoveAction() (Action, error) {
	if len(e.actions) == 0 {
		return nil, ErrActionsDrained
	}
	action := e.actions[0]
	e.actions = e.actions[1:]
	e.startIndex++
	return action, nil
}

// RemoveActionAs 取走下一个动作并断言其具体类型。类型不符时不取走动作。
func RemoveActionAs[A any](e *Expired) (A, error) {
	var zero A
	if len(e.actions) == 0 {
		return zero, ErrActionsDrained
	}
	payload, ok := e.actions[0].(A)
	if !ok {
		return zero, ErrWrongActionType
	}
	e.actions = e.actions[1:]
	e.startIndex++
	return payload, nil
}

// DestroyEmpty 销毁包装。包内仍有动作时拒绝。
func (e *Expired) DestroyEmpty() error {
	if len(e.actions) != 0 {
		return ErrActionsNotEmpty
	}
	return nil
}
