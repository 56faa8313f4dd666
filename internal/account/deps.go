package account

import (
	"github.com/ethereum/go-ethereum/common"
)

// CoreDepName 是核心协议模块在依赖列表中的固定名称，必须位于首位。
const CoreDepName = "AccountProtocol"

// Dep 描述账户允许调用的一个协作模块。
type Dep struct {
	Name    string         `json:"name"`
	Addr    common.Address `json:"addr"`
	Version uint64         `json:"version"`
}

// Deps 是账户的依赖白名单：有序的 (名称, 地址, 版本) 三元组，
// 外加是否允许加入未核准模块的开关。只能通过已执行的配置意图变更。
type Deps struct {
	inner             []Dep
	unverifiedAllowed bool
}

// Allowlist 是部署方核准的模块集合，按名称与地址双重索引。
type Allowlist struct {
	names map[string]common.Address
}

// NewAllowlist 构造核准列表。
func NewAllowlist(deps ...Dep) *Allowlist {
	names := make(map[string]common.Address, len(deps))
	for _, dep := range deps {
		names[dep.Name] = dep.Addr
	}
	return &Allowlist{names: names}
}

func (a *Allowlist) contains(dep Dep) bool {
	if a == nil {
		return false
	}
	addr, ok := a.names[dep.Name]
	return ok && addr == dep.Addr
}

// NewDeps 构造依赖白名单。名称或地址重复、未核准条目（在禁止未核准模块时）、
// 缺少核心协议模块，均视为配置错误。
func NewDeps(allowlist *Allowlist, unverifiedAllowed bool, deps []Dep) (*Deps, error) {
	seenNames := make(map[string]struct{}, len(deps))
	seenAddrs := make(map[common.Address]struct{}, len(deps))
	for _, dep := range deps {
		if _, ok := seenNames[dep.Name]; ok {
			return nil, ErrDepAlreadyExists
		}
		if _, ok := seenAddrs[dep.Addr]; ok {
			return nil, ErrDepAlreadyExists
		}
		seenNames[dep.Name] = struct{}{}
		seenAddrs[dep.Addr] = struct{}{}
		if !unverifiedAllowed && !allowlist.contains(dep) {
			return nil, ErrNotExtension
		}
	}
	if len(deps) == 0 || deps[0].Name != CoreDepName {
		return nil, ErrAccountProtocolMissing
	}
	inner := make([]Dep, len(deps))
	copy(inner, deps)
	return &Deps{inner: inner, unverifiedAllowed: unverifiedAllowed}, nil
}

// Check 校验调用模块是否在白名单内。这是动作模块回调账户变更函数前
// 必须通过的访问控制闸口。
func (d *Deps) Check(module string) error {
	for _, dep := range d.inner {
		if dep.Name == module {
			return nil
		}
	}
	return ErrNotDep
}

// Get 按名称返回依赖条目。
func (d *Deps) Get(module string) (Dep, error) {
	for _, dep := range d.inner {
		if dep.Name == module {
			return dep, nil
		}
	}
	return Dep{}, ErrNotDep
}

// UnverifiedAllowed 返回账户是否允许加入未核准模块。
func (d *Deps) UnverifiedAllowed() bool {
	return d.unverifiedAllowed
}

// List 返回依赖条目的副本。
func (d *Deps) List() []Dep {
	deps := make([]Dep, len(d.inner))
	copy(deps, d.inner)
	return deps
}

// Len 返回依赖数量。
func (d *Deps) Len() int {
	return len(d.inner)
}
