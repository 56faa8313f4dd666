package account

import (
	"github.com/ethereum/go-ethereum/common"
)

// Issuer 是意图的来源记录，绑定创建它的账户地址、意图 key 与 witness。
// 只能由账户核心在创建意图时构造，此后不可变。
type Issuer struct {
	account   common.Address
	intentKey string
	witness   Witness
}

func newIssuer(account common.Address, intentKey string, w Witness) Issuer {
	return Issuer{account: account, intentKey: intentKey, witness: w}
}

// Account 返回意图所属的账户地址。
func (i Issuer) Account() common.Address {
	return i.account
}

// IntentKey 返回意图的 key。
func (i Issuer) IntentKey() string {
	return i.intentKey
}

// Witness 返回创建意图时使用的凭证。
func (i Issuer) Witness() Witness {
	return i.witness
}

// AssertIsAccount 校验调用是否针对创建该意图的账户。
func (i Issuer) AssertIsAccount(addr common.Address) error {
	if i.account != addr {
		return ErrWrongAccount
	}
	return nil
}

// AssertIsIntent 校验调用方出示的凭证与创建意图时使用的是否一致。
func (i Issuer) AssertIsIntent(w Witness) error {
	if w.IsZero() || i.witness != w {
		return ErrWrongWitness
	}
	return nil
}
