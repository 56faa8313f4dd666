package account

import (
	xerrors "SmartAccount-Chain/internal/errors"
)

// 引擎统一错误码。按失败类别划分：来源校验、时间窗口、状态与唯一性、依赖边界。
const (
	CodeWrongAccount           xerrors.Code = "WRONG_ACCOUNT"
	CodeWrongWitness           xerrors.Code = "WRONG_WITNESS"
	CodeWrongActionType        xerrors.Code = "WRONG_ACTION_TYPE"
	CodeNoExecutionTime        xerrors.Code = "NO_EXECUTION_TIME"
	CodeTimesNotAscending      xerrors.Code = "EXECUTION_TIMES_NOT_ASCENDING"
	CodeCantBeExecutedYet      xerrors.Code = "CANT_BE_EXECUTED_YET"
	CodeHasntExpired           xerrors.Code = "HASNT_EXPIRED"
	CodeCantBeRemovedYet       xerrors.Code = "CANT_BE_REMOVED_YET"
	CodeKeyAlreadyExists       xerrors.Code = "KEY_ALREADY_EXISTS"
	CodeIntentNotFound         xerrors.Code = "INTENT_NOT_FOUND"
	CodeObjectAlreadyLocked    xerrors.Code = "OBJECT_ALREADY_LOCKED"
	CodeObjectNotLocked        xerrors.Code = "OBJECT_NOT_LOCKED"
	CodeActionsNotEmpty        xerrors.Code = "ACTIONS_NOT_EMPTY"
	CodeActionsRemaining       xerrors.Code = "ACTIONS_REMAINING"
	CodeActionsDrained         xerrors.Code = "ACTIONS_DRAINED"
	CodeExecutableConsumed     xerrors.Code = "EXECUTABLE_CONSUMED"
	CodeNotDep                 xerrors.Code = "NOT_DEP"
	CodeNotExtension           xerrors.Code = "NOT_EXTENSION"
	CodeDepAlreadyExists       xerrors.Code = "DEP_ALREADY_EXISTS"
	CodeAccountProtocolMissing xerrors.Code = "ACCOUNT_PROTOCOL_MISSING"
)

var (
	// ErrWrongAccount 表示调用方出示的凭证或意图属于其它账户。
	ErrWrongAccount = xerrors.New(CodeWrongAccount, "issuer belongs to a different account")
	// ErrWrongWitness 表示调用方出示的 witness 与创建意图时使用的不一致。
	ErrWrongWitness = xerrors.New(CodeWrongWitness, "witness does not match intent issuer")
	// ErrWrongActionType 表示动作载荷的具体类型与调用方期望的类型不符。
	ErrWrongActionType = xerrors.New(CodeWrongActionType, "action payload has unexpected type")
	// ErrNoExecutionTime 表示意图创建时未提供任何执行时间。
	ErrNoExecutionTime = xerrors.New(CodeNoExecutionTime, "execution times cannot be empty")
	// ErrTimesNotAscending 表示执行时间列表不是严格递增的。
	ErrTimesNotAscending = xerrors.New(CodeTimesNotAscending, "execution times must be strictly ascending")
	// ErrCantBeExecutedYet 表示最早的执行时间尚未到达。
	ErrCantBeExecutedYet = xerrors.New(CodeCantBeExecutedYet, "intent cannot be executed yet", xerrors.WithRetryable(true))
	// ErrHasntExpired 表示意图的过期时间尚未到达。
	ErrHasntExpired = xerrors.New(CodeHasntExpired, "intent has not expired yet", xerrors.WithRetryable(true))
	// ErrCantBeRemovedYet 表示意图仍有待执行的时间点，不能被清除。
	ErrCantBeRemovedYet = xerrors.New(CodeCantBeRemovedYet, "intent still has pending execution times")
	// ErrKeyAlreadyExists 表示注册表中已存在同名意图。
	ErrKeyAlreadyExists = xerrors.New(CodeKeyAlreadyExists, "intent key already exists")
	// ErrIntentNotFound 表示指定的意图不存在。
	ErrIntentNotFound = xerrors.New(CodeIntentNotFound, "intent not found")
	// ErrObjectAlreadyLocked 表示对象已被其它待决意图锁定。
	ErrObjectAlreadyLocked = xerrors.New(CodeObjectAlreadyLocked, "object is already locked")
	// ErrObjectNotLocked 表示解锁请求针对一个未被锁定的对象。
	ErrObjectNotLocked = xerrors.New(CodeObjectNotLocked, "object is not locked")
	// ErrActionsNotEmpty 表示 Expired 包内仍有未清理的动作。
	ErrActionsNotEmpty = xerrors.New(CodeActionsNotEmpty, "expired intent still holds actions")
	// ErrActionsRemaining 表示执行令牌在遍历完所有动作前被确认。
	ErrActionsRemaining = xerrors.New(CodeActionsRemaining, "not all actions have been processed")
	// ErrActionsDrained 表示动作列表已被取空。
	ErrActionsDrained = xerrors.New(CodeActionsDrained, "no actions left")
	// ErrExecutableConsumed 表示执行令牌已被消费，不能复用。
	ErrExecutableConsumed = xerrors.New(CodeExecutableConsumed, "executable has already been consumed")
	// ErrNotDep 表示调用模块不在账户的依赖白名单内。
	ErrNotDep = xerrors.New(CodeNotDep, "caller module is not a registered dependency")
	// ErrNotExtension 表示依赖不在核准列表内且账户禁止未核准依赖。
	ErrNotExtension = xerrors.New(CodeNotExtension, "dependency is not on the allowlist")
	// ErrDepAlreadyExists 表示依赖列表中出现重复条目。
	ErrDepAlreadyExists = xerrors.New(CodeDepAlreadyExists, "dependency already exists")
	// ErrAccountProtocolMissing 表示依赖列表缺少核心协议模块。
	ErrAccountProtocolMissing = xerrors.New(CodeAccountProtocolMissing, "core protocol dependency is missing")
)

func init() {
	// 来源错误：属于调用方缺陷或恶意调用，必须中止且告警。
	xerrors.Register(CodeWrongAccount, xerrors.Attributes{
		Message:   "issuer belongs to a different account",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeWrongWitness, xerrors.Attributes{
		Message:   "witness does not match intent issuer",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeWrongActionType, xerrors.Attributes{
		Message:   "action payload has unexpected type",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	// 时间错误：请求合法但过早，或构造参数不合法。
	xerrors.Register(CodeNoExecutionTime, xerrors.Attributes{
		Message:   "execution times cannot be empty",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTimesNotAscending, xerrors.Attributes{
		Message:   "execution times must be strictly ascending",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeCantBeExecutedYet, xerrors.Attributes{
		Message:   "intent cannot be executed yet",
		Severity:  xerrors.SeverityInfo,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeHasntExpired, xerrors.Attributes{
		Message:   "intent has not expired yet",
		Severity:  xerrors.SeverityInfo,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeCantBeRemovedYet, xerrors.Attributes{
		Message:   "intent still has pending execution times",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	// 状态与唯一性错误：调用方逻辑缺陷或过期视图。
	xerrors.Register(CodeKeyAlreadyExists, xerrors.Attributes{
		Message:   "intent key already exists",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeIntentNotFound, xerrors.Attributes{
		Message:   "intent not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeObjectAlreadyLocked, xerrors.Attributes{
		Message:   "object is already locked",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeObjectNotLocked, xerrors.Attributes{
		Message:   "object is not locked",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeActionsNotEmpty, xerrors.Attributes{
		Message:   "expired intent still holds actions",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeActionsRemaining, xerrors.Attributes{
		Message:   "not all actions have been processed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeActionsDrained, xerrors.Attributes{
		Message:   "no actions left",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeExecutableConsumed, xerrors.Attributes{
		Message:   "executable has already been consumed",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
	// 依赖边界错误：模块白名单校验失败。
	xerrors.Register(CodeNotDep, xerrors.Attributes{
		Message:   "caller module is not a registered dependency",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeNotExtension, xerrors.Attributes{
		Message:   "dependency is not on the allowlist",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeDepAlreadyExists, xerrors.Attributes{
		Message:   "dependency already exists",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAccountProtocolMissing, xerrors.Attributes{
		Message:   "core protocol dependency is missing",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}
