package vault

import (
	"context"
	"encoding/json"
	stdErrors "errors"

	"SmartAccount-Chain/internal/account"
	xerrors "SmartAccount-Chain/internal/errors"
)

// Module 将金库动作接入生命周期服务。
type Module struct {
	vault *Vault
}

// NewModule 用指定金库构造模块实例。
func NewModule(v *Vault) *Module {
	return &Module{vault: v}
}

// Name 实现 account.ActionModule。
func (m *Module) Name() string {
	return ModuleName
}

// Witness 实现 account.ActionModule。
func (m *Module) Witness() account.Witness {
	return SpendWitness
}

// Propose 解析转出载荷并提交取用意图。
func (m *Module) Propose(_ context.Context, acct *account.Account, auth account.Auth, p account.IntentParams, outcome account.Outcome, payload []byte, clock account.Clock) error {
	var action SpendAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析转出载荷失败")
	}
	if action.Amount == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "转出金额不能为零")
	}
	return RequestSpend(acct, auth, p, outcome, action, clock)
}

// Execute 依次处理执行令牌覆盖的全部转出动作。
func (m *Module) Execute(_ context.Context, acct *account.Account, exec *account.Executable) error {
	for {
		if _, err := ExecuteSpend(acct, exec, m.vault); err != nil {
			if stdErrors.Is(err, account.ErrActionsDrained) {
				return nil
			}
			return err
		}
	}
}

// Cleanup 取走过期包中的全部转出动作并释放对象锁。
func (m *Module) Cleanup(_ context.Context, acct *account.Account, expired *account.Expired) error {
	for expired.ActionsLeft() > 0 {
		if err := DeleteSpend(acct, expired); err != nil {
			return err
		}
	}
	return nil
}

var _ account.ActionModule = (*Module)(nil)
