// Package configops 提供配置类动作的参考实现：依赖白名单、策略状态与
// 元数据都只能经由已审批并执行的配置意图变更。
package configops

import (
	"SmartAccount-Chain/internal/account"
)

// ModuleName 是配置模块在依赖白名单中的名称。
const ModuleName = "ConfigOps"

// ConfigWitness 是配置模块创建配置意图时出示的能力凭证。
var ConfigWitness = account.NewWitness(ModuleName, "ConfigIntent")

// UpdateMetadataAction 在执行阶段写入一个账户元数据项。
type UpdateMetadataAction struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UpdateDepsAction 在执行阶段整体替换依赖白名单。
// 新列表在请求阶段即完成校验，执行阶段不再失败。
type UpdateDepsAction struct {
	Deps *account.Deps `json:"-"`
}

// UpdateConfigAction 在执行阶段整体替换策略状态。
type UpdateConfigAction struct {
	Config account.Config `json:"-"`
}

// RequestUpdateMetadata 提交一条写入元数据的配置意图。
func RequestUpdateMetadata(acct *account.Account, auth account.Auth, p account.IntentParams, outcome account.Outcome, actions []UpdateMetadataAction, clock account.Clock) error {
	intent, err := acct.CreateIntent(auth, p, outcome, ConfigWitness, clock)
	if err != nil {
		return err
	}
	for _, action := range actions {
		intent.AddAction(action)
	}
	return acct.AddIntent(intent, ConfigWitness)
}

// RequestUpdateDeps 提交一条替换依赖白名单的配置意图。
// 新列表经由 account.NewDeps 校验后封存在动作内。
func RequestUpdateDeps(acct *account.Account, auth account.Auth, p account.IntentParams, outcome account.Outcome, allowlist *account.Allowlist, unverifiedAllowed bool, deps []account.Dep, clock account.Clock) error {
	validated, err := account.NewDeps(allowlist, unverifiedAllowed, deps)
	if err != nil {
		return err
	}
	intent, err := acct.CreateIntent(auth, p, outcome, ConfigWitness, clock)
	if err != nil {
		return err
	}
	intent.AddAction(UpdateDepsAction{Deps: validated})
	return acct.AddIntent(intent, ConfigWitness)
}

// RequestUpdateConfig 提交一条替换策略状态的配置意图。
func RequestUpdateConfig(acct *account.Account, auth account.Auth, p account.IntentParams, outcome account.Outcome, cfg account.Config, clock account.Clock) error {
	intent, err := acct.CreateIntent(auth, p, outcome, ConfigWitness, clock)
	if err != nil {
		return err
	}
	intent.AddAction(UpdateConfigAction{Config: cfg})
	return acct.AddIntent(intent, ConfigWitness)
}

// ExecuteUpdateMetadata 处理一个元数据动作并落到账户上。
func ExecuteUpdateMetadata(acct *account.Account, exec *account.Executable) error {
	action, err := account.ProcessAction[UpdateMetadataAction](acct, exec, ConfigWitness)
	if err != nil {
		return err
	}
	acct.SetMetadata(action.Key, action.Value)
	return nil
}

// ExecuteUpdateDeps 处理一个依赖替换动作。
func ExecuteUpdateDeps(acct *account.Account, exec *account.Executable) error {
	action, err := account.ProcessAction[UpdateDepsAction](acct, exec, ConfigWitness)
	if err != nil {
		return err
	}
	acct.ReplaceDeps(action.Deps)
	return nil
}

// ExecuteUpdateConfig 处理一个策略状态替换动作。
func ExecuteUpdateConfig(acct *account.Account, exec *account.Executable) error {
	action, err := account.ProcessAction[UpdateConfigAction](acct, exec, ConfigWitness)
	if err != nil {
		return err
	}
	acct.ReplaceConfig(action.Config)
	return nil
}

// DeleteUpdateMetadata 从过期包中取走并销毁一个元数据动作。
func DeleteUpdateMetadata(expired *account.Expired) error {
	_, err := account.RemoveActionAs[UpdateMetadataAction](expired)
	return err
}

// DeleteUpdateDeps 从过期包中取走并销毁一个依赖替换动作。
func DeleteUpdateDeps(expired *account.Expired) error {
	_, err := account.RemoveActionAs[UpdateDepsAction](expired)
	return err
}

// DeleteUpdateConfig 从过期包中取走并销毁一个策略状态替换动作。
func DeleteUpdateConfig(expired *account.Expired) error {
	_, err := account.RemoveActionAs[UpdateConfigAction](expired)
	return err
}
