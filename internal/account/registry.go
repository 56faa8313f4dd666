package account

import (
	"github.com/ethereum/go-ethereum/common"
)

// intents 是单个账户的意图注册表：有序的存活意图列表，外加被待决意图
// 预定的对象锁集合。所有变更都经由 Account 在互斥锁内调用，本身不加锁。
type intents struct {
	order  []*Intent
	index  map[string]*Intent
	locked map[common.Hash]struct{}
}

func newIntents() *intents {
	return &intents{
		index:  make(map[string]*Intent),
		locked: make(map[common.Hash]struct{}),
	}
}

// add 是意图进入存活列表的唯一入口。key 冲突直接拒绝。
func (r *intents) add(intent *Intent) error {
	if _, ok := r.index[intent.key]; ok {
		return ErrKeyAlreadyExists
	}
	r.index[intent.key] = intent
	r.order = append(r.order, intent)
	return nil
}

func (r *intents) get(key string) (*Intent, error) {
	intent, ok := r.index[key]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

// remove 将意图移出存活列表并交回其动作，供清理路径包装为 Expired。
func (r *intents) remove(key string) (*Intent, error) {
	intent, ok := r.index[key]
	if !ok {
		return nil, ErrIntentNotFound
	}
	delete(r.index, key)
	for i, candidate := range r.order {
		if candidate == intent {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return intent, nil
}

// lock 预定一个对象。同一对象同一时刻至多被一条存活意图锁定，
// 重复加锁是调用方缺陷，必须中止。
func (r *intents) lock(id common.Hash) error {
	if _, ok := r.locked[id]; ok {
		return ErrObjectAlreadyLocked
	}
	r.locked[id] = struct{}{}
	return nil
}

// unlock 释放对象锁。解锁未锁定的对象同样是调用方缺陷。
func (r *intents) unlock(id common.Hash) error {
	if _, ok := r.locked[id]; !ok {
		return ErrObjectNotLocked
	}
	delete(r.locked, id)
	return nil
}

func (r *intents) isLocked(id common.Hash) bool {
	_, ok := r.locked[id]
	return ok
}

func (r *intents) keys() []string {
	keys := make([]string, 0, len(r.order))
	for _, intent := range r.order {
		keys = append(keys, intent.key)
	}
	return keys
}

func (r *intents) len() int {
	return len(r.order)
}
