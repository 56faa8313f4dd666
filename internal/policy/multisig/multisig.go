// Package multisig 实现加权多签审批策略：成员携带权重，按意图角色路由到
// 各自的阈值，审批权重达到阈值后意图才允许执行。
package multisig

import (
	"github.com/ethereum/go-ethereum/common"

	"SmartAccount-Chain/internal/account"
	xerrors "SmartAccount-Chain/internal/errors"
)

const (
	CodeNotMember           xerrors.Code = "MULTISIG_NOT_MEMBER"
	CodeAlreadyApproved     xerrors.Code = "MULTISIG_ALREADY_APPROVED"
	CodeNotApproved         xerrors.Code = "MULTISIG_NOT_APPROVED"
	CodeThresholdNotReached xerrors.Code = "MULTISIG_THRESHOLD_NOT_REACHED"
	CodeBadConfig           xerrors.Code = "MULTISIG_BAD_CONFIG"
)

var (
	// ErrNotMember 表示调用方不是多签成员。
	ErrNotMember = xerrors.New(CodeNotMember, "caller is not a multisig member")
	// ErrAlreadyApproved 表示成员已经审批过该意图。
	ErrAlreadyApproved = xerrors.New(CodeAlreadyApproved, "member has already approved")
	// ErrNotApproved 表示成员尚未审批，无法撤回。
	ErrNotApproved = xerrors.New(CodeNotApproved, "member has not approved")
	// ErrThresholdNotReached 表示审批权重未达到阈值。
	ErrThresholdNotReached = xerrors.New(CodeThresholdNotReached, "approval threshold not reached", xerrors.WithRetryable(true))
	// ErrBadConfig 表示多签配置不合法。
	ErrBadConfig = xerrors.New(CodeBadConfig, "invalid multisig config")
)

func init() {
	xerrors.Register(CodeNotMember, xerrors.Attributes{
		Message:   "caller is not a multisig member",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeAlreadyApproved, xerrors.Attributes{
		Message:   "member has already approved",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeNotApproved, xerrors.Attributes{
		Message:   "member has not approved",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeThresholdNotReached, xerrors.Attributes{
		Message:   "approval threshold not reached",
		Severity:  xerrors.SeverityInfo,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeBadConfig, xerrors.Attributes{
		Message:   "invalid multisig config",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// Member 描述一个多签成员及其审批权重。
type Member struct {
	Addr   common.Address `json:"addr"`
	Weight uint64         `json:"weight"`
}

// Config 是账户挂载的多签策略状态。Roles 将意图角色映射到独立阈值，
// 未配置角色的意图回落到全局阈值。
type Config struct {
	Members   []Member          `json:"members"`
	Threshold uint64            `json:"threshold"`
	Roles     map[string]uint64 `json:"roles,omitempty"`
}

// NewConfig 构造并校验多签配置：必须有成员、权重非零、阈值在总权重内。
func NewConfig(threshold uint64, members []Member, roles map[string]uint64) (*Config, error) {
	if len(members) == 0 || threshold == 0 {
		return nil, ErrBadConfig
	}
	var total uint64
	seen := make(map[common.Address]struct{}, len(members))
	for _, m := range members {
		if m.Weight == 0 {
			return nil, ErrBadConfig
		}
		if _, ok := seen[m.Addr]; ok {
			return nil, ErrBadConfig
		}
		seen[m.Addr] = struct{}{}
		total += m.Weight
	}
	if threshold > total {
		return nil, ErrBadConfig
	}
	for _, roleThreshold := range roles {
		if roleThreshold == 0 || roleThreshold > total {
			return nil, ErrBadConfig
		}
	}
	cfg := &Config{Members: make([]Member, len(members)), Threshold: threshold}
	copy(cfg.Members, members)
	if len(roles) > 0 {
		cfg.Roles = make(map[string]uint64, len(roles))
		for name, t := range roles {
			cfg.Roles[name] = t
		}
	}
	return cfg, nil
}

// MemberWeight 返回成员权重；非成员返回 0。
func (c *Config) MemberWeight(addr common.Address) uint64 {
	for _, m := range c.Members {
		if m.Addr == addr {
			return m.Weight
		}
	}
	return 0
}

// thresholdFor 返回指定角色的生效阈值。
func (c *Config) thresholdFor(role string) uint64 {
	if t, ok := c.Roles[role]; ok {
		return t
	}
	return c.Threshold
}

// Outcome 是挂载在每条意图上的审批计票状态。
type Outcome struct {
	Role           string                    `json:"role"`
	ApprovedWeight uint64                    `json:"approved_weight"`
	Approvals      map[common.Address]uint64 `json:"approvals"`
}

// NewOutcome 为指定角色的意图创建空计票。
func NewOutcome(role string) *Outcome {
	return &Outcome{Role: role, Approvals: make(map[common.Address]uint64)}
}

// CloneOutcome 返回计票状态的独立副本，供执行链路快照使用。
func (o *Outcome) CloneOutcome() account.Outcome {
	clone := &Outcome{
		Role:           o.Role,
		ApprovedWeight: o.ApprovedWeight,
		Approvals:      make(map[common.Address]uint64, len(o.Approvals)),
	}
	for addr, weight := range o.Approvals {
		clone.Approvals[addr] = weight
	}
	return clone
}

func (o *Outcome) approve(addr common.Address, weight uint64) error {
	if _, ok := o.Approvals[addr]; ok {
		return ErrAlreadyApproved
	}
	o.Approvals[addr] = weight
	o.ApprovedWeight += weight
	return nil
}

func (o *Outcome) disapprove(addr common.Address) error {
	weight, ok := o.Approvals[addr]
	if !ok {
		return ErrNotApproved
	}
	delete(o.Approvals, addr)
	o.ApprovedWeight -= weight
	return nil
}

// Policy 实现 account.Policy。
type Policy struct{}

// Authenticate 校验调用方是多签成员后签发认证凭证。
func (Policy) Authenticate(acct, caller common.Address, cfg account.Config) (account.Auth, error) {
	state, ok := cfg.(*Config)
	if !ok || state.MemberWeight(caller) == 0 {
		return account.Auth{}, ErrNotMember
	}
	return account.NewAuth(acct), nil
}

// Validate 判断计票是否达到该意图角色的生效阈值。
func (Policy) Validate(outcome account.Outcome, cfg account.Config) error {
	tally, ok := outcome.(*Outcome)
	if !ok {
		return ErrBadConfig
	}
	state, ok := cfg.(*Config)
	if !ok {
		return ErrBadConfig
	}
	if tally.ApprovedWeight < state.thresholdFor(tally.Role) {
		return ErrThresholdNotReached
	}
	return nil
}

// Approve 以成员身份为意图投下审批票。
func Approve(acct *account.Account, caller common.Address, key string) error {
	auth, err := acct.Authenticate(caller)
	if err != nil {
		return err
	}
	cfg, ok := acct.ConfigState().(*Config)
	if !ok {
		return ErrBadConfig
	}
	return acct.UpdateOutcome(auth, key, func(outcome account.Outcome) (account.Outcome, error) {
		tally, ok := outcome.(*Outcome)
		if !ok {
			return nil, ErrBadConfig
		}
		if err := tally.approve(caller, cfg.MemberWeight(caller)); err != nil {
			return nil, err
		}
		return tally, nil
	})
}

// Disapprove 撤回成员先前投下的审批票。意图记录本身保留到过期或执行。
func Disapprove(acct *account.Account, caller common.Address, key string) error {
	auth, err := acct.Authenticate(caller)
	if err != nil {
		return err
	}
	return acct.UpdateOutcome(auth, key, func(outcome account.Outcome) (account.Outcome, error) {
		tally, ok := outcome.(*Outcome)
		if !ok {
			return nil, ErrBadConfig
		}
		if err := tally.disapprove(caller); err != nil {
			return nil, err
		}
		return tally, nil
	})
}

var _ account.Policy = Policy{}
