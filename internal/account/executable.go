package account

import (
	"github.com/google/uuid"
)

// Executable 是单次执行令牌。只能由 ExecuteIntent 在策略校验通过后构造，
// 必须在同一个执行上下文内走完全部动作并通过 ConfirmExecution 销毁。
// 字段全部不可导出，且不提供序列化路径：令牌无法被持久化或跨调用复用。
type Executable struct {
	issuer      Issuer
	actionIdx   int
	actionCount int
	scheduledAt int64
	nonce       uuid.UUID
	consumed    bool
}

func newExecutable(issuer Issuer, actionCount int, scheduledAt int64) *Executable {
	return &Executable{
		issuer:      issuer,
		actionCount: actionCount,
		scheduledAt: scheduledAt,
		nonce:       uuid.New(),
	}
}

// ScheduledAt 返回本次执行对应的计划时间点。
func (e *Executable) ScheduledAt() int64 {
	return e.scheduledAt
}

// Issuer 返回令牌携带的来源记录，与其意图的来源逐字相同。
func (e *Executable) Issuer() Issuer {
	return e.issuer
}

// NextAction 返回当前动作下标并前移一位。这里刻意不做越界检查：
// 越界由 ConfirmExecution 的穷尽断言统一兜底，保持热路径无分支。
func (e *Executable) NextAction() int {
	idx := e.actionIdx
	e.actionIdx++
	return idx
}

// ActionIndex 返回当前动作下标。
func (e *Executable) ActionIndex() int {
	return e.actionIdx
}

// Nonce 返回令牌的一次性标识，用于审计日志关联。
func (e *Executable) Nonce() uuid.UUID {
	return e.nonce
}

// assertExhausted 校验每个动作下标都已被访问。
func (e *Executable) assertExhausted() error {
	if e.consumed {
		return ErrExecutableConsumed
	}
	if e.actionIdx != e.actionCount {
		return ErrActionsRemaining
	}
	return nil
}
