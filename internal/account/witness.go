package account

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Witness 是动作模块出示的能力凭证。创建意图时使用的 Witness 会被记录在
// Issuer 中，此后任何读取或推进该意图的调用都必须出示相同的值。
// 授权是结构性的：不涉及签名，只做一次值相等比较。
type Witness struct {
	Module string
	Kind   string
}

// NewWitness 构造一个能力凭证。Module 为模块名，Kind 为该模块内的意图种类。
func NewWitness(module, kind string) Witness {
	return Witness{Module: module, Kind: kind}
}

// String 返回凭证的规范化表示。
func (w Witness) String() string {
	return fmt.Sprintf("%s::%s", w.Module, w.Kind)
}

// Digest 返回凭证规范化表示的 Keccak256 摘要，用于对外暴露。
func (w Witness) Digest() common.Hash {
	return crypto.Keccak256Hash([]byte(w.String()))
}

// IsZero 判断凭证是否为空值。空凭证永远不会匹配任何 Issuer。
func (w Witness) IsZero() bool {
	return w.Module == "" && w.Kind == ""
}
