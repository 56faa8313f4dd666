package configops

import (
	"context"
	"encoding/json"
	stdErrors "errors"

	"SmartAccount-Chain/internal/account"
	xerrors "SmartAccount-Chain/internal/errors"
)

// Module 将配置类动作接入生命周期服务。API 层的提案载荷只覆盖元数据
// 写入；依赖白名单与策略状态的替换涉及进程内指针，走包级 Request 入口。
type Module struct{}

// NewModule 构造模块实例。
func NewModule() *Module {
	return &Module{}
}

// Name 实现 account.ActionModule。
func (m *Module) Name() string {
	return ModuleName
}

// Witness 实现 account.ActionModule。
func (m *Module) Witness() account.Witness {
	return ConfigWitness
}

type proposePayload struct {
	Metadata []UpdateMetadataAction `json:"metadata"`
}

// Propose 解析元数据载荷并提交配置意图。
func (m *Module) Propose(_ context.Context, acct *account.Account, auth account.Auth, p account.IntentParams, outcome account.Outcome, payload []byte, clock account.Clock) error {
	var body proposePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析配置载荷失败")
	}
	if len(body.Metadata) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "配置载荷不能为空")
	}
	for _, action := range body.Metadata {
		if action.Key == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "元数据键不能为空")
		}
	}
	return RequestUpdateMetadata(acct, auth, p, outcome, body.Metadata, clock)
}

// Execute 依次处理执行令牌覆盖的全部配置动作，按动作类型分派落账。
func (m *Module) Execute(_ context.Context, acct *account.Account, exec *account.Executable) error {
	for {
		action, err := account.ProcessAction[account.Action](acct, exec, ConfigWitness)
		if err != nil {
			if stdErrors.Is(err, account.ErrActionsDrained) {
				return nil
			}
			return err
		}
		switch a := action.(type) {
		case UpdateMetadataAction:
			acct.SetMetadata(a.Key, a.Value)
		case UpdateDepsAction:
			acct.ReplaceDeps(a.Deps)
		case UpdateConfigAction:
			acct.ReplaceConfig(a.Config)
		default:
			return account.ErrWrongActionType
		}
	}
}

// Cleanup 取走过期包中的全部配置动作。配置动作不持有对象锁，丢弃即可。
func (m *Module) Cleanup(_ context.Context, _ *account.Account, expired *account.Expired) error {
	for expired.ActionsLeft() > 0 {
		if _, err := expired.RemoveAction(); err != nil {
			return err
		}
	}
	return nil
}

var _ account.ActionModule = (*Module)(nil)
