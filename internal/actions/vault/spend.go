package vault

import (
	"github.com/ethereum/go-ethereum/common"

	"SmartAccount-Chain/internal/account"
)

// ModuleName 是金库模块在依赖白名单中的名称。
const ModuleName = "AccountVault"

// SpendWitness 是金库模块创建取用意图时出示的能力凭证。
var SpendWitness = account.NewWitness(ModuleName, "SpendIntent")

// SpendAction 描述一次待审批的金库转出。
type SpendAction struct {
	Coin      common.Hash    `json:"coin"`
	Amount    uint64         `json:"amount"`
	Recipient common.Address `json:"recipient"`
}

// RequestSpend 组装并提交一条取用意图。要花费的对象在这里即被锁定，
// 阻止并发提案争用同一对象；提交失败时锁会被回滚。
func RequestSpend(acct *account.Account, auth account.Auth, p account.IntentParams, outcome account.Outcome, action SpendAction, clock account.Clock) error {
	intent, err := acct.CreateIntent(auth, p, outcome, SpendWitness, clock)
	if err != nil {
		return err
	}
	intent.AddAction(action)

	if err := acct.LockObject(action.Coin); err != nil {
		return err
	}
	if err := acct.AddIntent(intent, SpendWitness); err != nil {
		_ = acct.UnlockObject(action.Coin)
		return err
	}
	return nil
}

// ExecuteSpend 处理执行令牌当前位置的取用动作并完成转出。
func ExecuteSpend(acct *account.Account, exec *account.Executable, v *Vault) (Transfer, error) {
	action, err := account.ProcessAction[SpendAction](acct, exec, SpendWitness)
	if err != nil {
		return Transfer{}, err
	}
	return v.spend(action.Coin, action.Amount, action.Recipient)
}

// DeleteSpend 从过期包中取走并销毁本模块的取用动作，同时释放对象锁。
func DeleteSpend(acct *account.Account, expired *account.Expired) error {
	action, err := account.RemoveActionAs[SpendAction](expired)
	if err != nil {
		return err
	}
	return acct.UnlockObject(action.Coin)
}
