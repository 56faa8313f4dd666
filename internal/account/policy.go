package account

import (
	"github.com/ethereum/go-ethereum/common"
)

// Outcome 是策略模块挂载在每条意图上的审批状态，对引擎完全不透明。
type Outcome any

// Config 是策略模块持有的账户级策略状态（例如成员与阈值），对引擎不透明。
type Config any

// Auth 证明调用方已通过策略模块针对某个账户的身份认证。
// 只应由策略模块的 Authenticate 签发；账户核心只校验其指向的账户地址。
type Auth struct {
	account common.Address
}

// NewAuth 签发指向指定账户的认证凭证。供策略模块在 Authenticate 内使用。
func NewAuth(account common.Address) Auth {
	return Auth{account: account}
}

// Account 返回凭证指向的账户地址。
func (a Auth) Account() common.Address {
	return a.account
}

// Policy 是可插拔审批策略必须实现的契约。引擎在两处调用它：
// 创建意图前的身份认证，以及执行意图时对 outcome 的最终校验。
type Policy interface {
	// Authenticate 校验调用方是否被账户的策略状态所承认，
	// 通过后签发指向该账户的认证凭证。
	Authenticate(account, caller common.Address, cfg Config) (Auth, error)
	// Validate 判断意图的审批状态是否满足放行条件，不满足时返回策略错误。
	Validate(outcome Outcome, cfg Config) error
}
