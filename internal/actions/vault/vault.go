// Package vault 提供账户金库与取用类动作的参考实现：SpendIntent 在创建
// 阶段锁定要花费的金库对象，执行阶段完成转出，清理阶段释放对象锁。
// 它同时是对象锁纪律的端到端示例。
package vault

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SmartAccount-Chain/internal/errors"
)

const (
	CodeCoinNotFound        xerrors.Code = "VAULT_COIN_NOT_FOUND"
	CodeInsufficientBalance xerrors.Code = "VAULT_INSUFFICIENT_BALANCE"
)

var (
	// ErrCoinNotFound 表示金库中不存在指定对象。
	ErrCoinNotFound = xerrors.New(CodeCoinNotFound, "coin object not found in vault")
	// ErrInsufficientBalance 表示对象余额不足以完成转出。
	ErrInsufficientBalance = xerrors.New(CodeInsufficientBalance, "coin balance is insufficient")
)

func init() {
	xerrors.Register(CodeCoinNotFound, xerrors.Attributes{
		Message:   "coin object not found in vault",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInsufficientBalance, xerrors.Attributes{
		Message:   "coin balance is insufficient",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// Transfer 记录一次已完成的转出，用于审计。
type Transfer struct {
	Coin      common.Hash    `json:"coin"`
	Amount    uint64         `json:"amount"`
	Recipient common.Address `json:"recipient"`
}

// Vault 是账户拥有的金库对象集合，按对象 id 记账。
// 它扮演宿主链 "按 id 接收对象" 原语的进程内替身。
type Vault struct {
	mu        sync.Mutex
	owner     common.Address
	coins     map[common.Hash]uint64
	transfers []Transfer
}

// NewVault 创建归属于指定账户的金库。
func NewVault(owner common.Address) *Vault {
	return &Vault{owner: owner, coins: make(map[common.Hash]uint64)}
}

// Owner 返回金库归属的账户地址。
func (v *Vault) Owner() common.Address {
	return v.owner
}

// Deposit 将对象存入金库。对象已存在时叠加余额。
func (v *Vault) Deposit(coin common.Hash, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.coins[coin] += amount
}

// Balance 返回对象余额。
func (v *Vault) Balance(coin common.Hash) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	balance, ok := v.coins[coin]
	if !ok {
		return 0, ErrCoinNotFound
	}
	return balance, nil
}

// spend 扣减对象余额并记录转出。余额归零时对象随之消失。
func (v *Vault) spend(coin common.Hash, amount uint64, recipient common.Address) (Transfer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	balance, ok := v.coins[coin]
	if !ok {
		return Transfer{}, ErrCoinNotFound
	}
	if balance < amount {
		return Transfer{}, ErrInsufficientBalance
	}
	if balance == amount {
		delete(v.coins, coin)
	} else {
		v.coins[coin] = balance - amount
	}
	transfer := Transfer{Coin: coin, Amount: amount, Recipient: recipient}
	v.transfers = append(v.transfers, transfer)
	return transfer, nil
}

// Transfers 返回已完成转出的副本。
func (v *Vault) Transfers() []Transfer {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Transfer, len(v.transfers))
	copy(out, v.transfers)
	return out
}
