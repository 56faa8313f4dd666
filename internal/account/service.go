package account

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"SmartAccount-Chain/internal/bus"
	xerrors "SmartAccount-Chain/internal/errors"
	"SmartAccount-Chain/internal/observability/alerting"
	"SmartAccount-Chain/internal/observability/metrics"
	"SmartAccount-Chain/internal/storage/mysql"
	"SmartAccount-Chain/pkg/logger"
)

// ActionModule 是动作模块接入服务层所需的契约：提案、执行与清理各一个
// 入口，全部以模块自己的 witness 走引擎校验。
type ActionModule interface {
	// Name 返回模块在依赖白名单中的名称。
	Name() string
	// Witness 返回模块创建意图时出示的凭证。
	Witness() Witness
	// Propose 解析载荷并组装一条新意图。时钟由服务层注入，保证意图的
	// 创建时间与生命周期其余环节用同一时间源。
	Propose(ctx context.Context, acct *Account, auth Auth, p IntentParams, outcome Outcome, payload []byte, clock Clock) error
	// Execute 依次处理执行令牌覆盖的全部动作。
	Execute(ctx context.Context, acct *Account, exec *Executable) error
	// Cleanup 从过期包中取走并销毁本模块的全部动作。
	Cleanup(ctx context.Context, acct *Account, expired *Expired) error
}

// ApproveFunc 由策略模块提供，完成一次审批或撤回。
type ApproveFunc func(acct *Account, caller common.Address, key string) error

// OutcomeFactory 由策略模块提供，为指定角色的新意图创建空审批状态。
type OutcomeFactory func(role string) Outcome

// ProposeRequest 描述一次提案请求。Payload 的格式由目标模块定义。
type ProposeRequest struct {
	Module         string          `json:"module"`
	Proposer       string          `json:"proposer"`
	Key            string          `json:"key"`
	Description    string          `json:"description,omitempty"`
	ExecutionTimes []int64         `json:"execution_times"`
	ExpirationTime int64           `json:"expiration_time"`
	RoleName       string          `json:"role_name,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Service 是生命周期服务：持有全部在线账户与已注册模块，驱动
// 提案/审批/执行/过期清理，并把每次迁移写入审计仓库与事件总线。
type Service struct {
	mu         sync.RWMutex
	accounts   map[common.Address]*Account
	modules    map[Witness]ActionModule
	byName     map[string]ActionModule
	approve    ApproveFunc
	disapprove ApproveFunc
	outcomes   OutcomeFactory
	repo       mysql.Repository
	publisher  bus.Publisher
	alerts     alerting.Dispatcher
	clock      Clock
}

// NewService 构造生命周期服务。repo 与 publisher 允许为空，此时相应
// 副作用被跳过。
func NewService(repo mysql.Repository, publisher bus.Publisher, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		accounts:  make(map[common.Address]*Account),
		modules:   make(map[Witness]ActionModule),
		byName:    make(map[string]ActionModule),
		repo:      repo,
		publisher: publisher,
		clock:     clock,
	}
}

// SetAlertDispatcher 注入告警分发器。注册表上标记为需要告警的错误码
// 会在操作失败时经由它广播。
func (s *Service) SetAlertDispatcher(d alerting.Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = d
}

// SetPolicyHooks 注入策略模块的审批入口与审批状态工厂。
func (s *Service) SetPolicyHooks(approve, disapprove ApproveFunc, outcomes OutcomeFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approve = approve
	s.disapprove = disapprove
	s.outcomes = outcomes
}

// RegisterModule 注册一个动作模块。
func (s *Service) RegisterModule(m ActionModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.Witness()] = m
	s.byName[m.Name()] = m
}

// RegisterAccount 接管一个账户。地址冲突时拒绝。
func (s *Service) RegisterAccount(acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.Address()]; ok {
		return xerrors.New(xerrors.CodeConflict, "账户已注册")
	}
	s.accounts[acct.Address()] = acct
	return nil
}

// Account 返回指定地址的账户。
func (s *Service) Account(addr common.Address) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "账户不存在")
	}
	return acct, nil
}

// Clock 返回服务使用的时钟。
func (s *Service) Clock() Clock {
	return s.clock
}

func (s *Service) module(w Witness) (ActionModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[w]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "动作模块未注册")
	}
	return m, nil
}

func (s *Service) moduleByName(name string) (ActionModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byName[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "动作模块未注册")
	}
	return m, nil
}

// Propose 将提案请求路由到目标模块，成功后记录审计与事件。
func (s *Service) Propose(ctx context.Context, addr common.Address, req ProposeRequest) error {
	acct, err := s.Account(addr)
	if err != nil {
		return err
	}
	m, err := s.moduleByName(req.Module)
	if err != nil {
		return err
	}
	if s.outcomes == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "策略钩子未注入")
	}
	if !common.IsHexAddress(req.Proposer) {
		return xerrors.New(xerrors.CodeInvalidArgument, "提案人地址不合法")
	}
	auth, err := acct.Authenticate(common.HexToAddress(req.Proposer))
	if err != nil {
		return err
	}

	p := IntentParams{
		Key:            req.Key,
		Description:    req.Description,
		ExecutionTimes: req.ExecutionTimes,
		ExpirationTime: req.ExpirationTime,
		RoleName:       req.RoleName,
	}
	outcome := s.outcomes(DeriveRole(m.Witness(), req.RoleName))
	if err := m.Propose(ctx, acct, auth, p, outcome, req.Payload, s.clock); err != nil {
		return err
	}

	view, _ := acct.IntentView(req.Key)
	s.record(ctx, bus.KindProposed, acct, req.Key, view.ActionCount)
	logger.Audit().Info("意图提案已挂载",
		slog.String("account", addr.Hex()),
		slog.String("intent_key", req.Key),
		slog.String("module", req.Module),
		slog.Int("actions", view.ActionCount),
	)
	return nil
}

// Approve 以成员身份为意图投票。
func (s *Service) Approve(ctx context.Context, addr, caller common.Address, key string) error {
	acct, err := s.Account(addr)
	if err != nil {
		return err
	}
	if s.approve == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "策略钩子未注入")
	}
	if err := s.approve(acct, caller, key); err != nil {
		return err
	}
	s.record(ctx, bus.KindApproved, acct, key, 0)
	return nil
}

// Disapprove 撤回成员先前的投票。
func (s *Service) Disapprove(ctx context.Context, addr, caller common.Address, key string) error {
	acct, err := s.Account(addr)
	if err != nil {
		return err
	}
	if s.disapprove == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "策略钩子未注入")
	}
	if err := s.disapprove(acct, caller, key); err != nil {
		return err
	}
	s.record(ctx, bus.KindDisapproved, acct, key, 0)
	return nil
}

// Execute 驱动一次完整的执行回合：签发执行令牌、交由模块处理全部动作、
// 确认穷尽，必要时走销毁与清理。
func (s *Service) Execute(ctx context.Context, addr common.Address, key string) error {
	acct, err := s.Account(addr)
	if err != nil {
		return err
	}
	w, err := acct.IntentWitness(key)
	if err != nil {
		return err
	}
	m, err := s.module(w)
	if err != nil {
		return err
	}

	exec, _, err := acct.ExecuteIntent(key, s.clock, w)
	if err != nil {
		s.alert(ctx, err, addr, key, "execute")
		return err
	}
	if err := m.Execute(ctx, acct, exec); err != nil {
		// 动作处理失败必须整体回滚：把弹出的时间点放回队首，
		// 否则单次意图会在审批有效期内永久失去执行机会。
		if abortErr := acct.AbortExecution(exec, w); abortErr != nil {
			logger.L().Warn("执行回滚失败", slog.Any("error", abortErr), slog.String("intent_key", key))
		}
		logger.L().Error("动作执行失败",
			slog.Any("error", err),
			slog.String("account", addr.Hex()),
			slog.String("intent_key", key),
		)
		s.alert(ctx, err, addr, key, "execute")
		return err
	}
	expired, err := acct.ConfirmExecution(exec, w)
	if err != nil {
		s.alert(ctx, err, addr, key, "confirm")
		return err
	}
	s.record(ctx, bus.KindExecuted, acct, key, exec.ActionIndex())

	if expired != nil {
		if err := m.Cleanup(ctx, acct, expired); err != nil {
			return err
		}
		if err := expired.DestroyEmpty(); err != nil {
			return err
		}
		s.record(ctx, bus.KindConfirmed, acct, key, 0)
	}
	logger.Audit().Info("意图执行完成",
		slog.String("account", addr.Hex()),
		slog.String("intent_key", key),
		slog.String("executable", exec.Nonce().String()),
		slog.Bool("destroyed", expired != nil),
	)
	return nil
}

// DeleteExpired 清理一条已过期且未能执行的意图。
func (s *Service) DeleteExpired(ctx context.Context, addr common.Address, key string) error {
	acct, err := s.Account(addr)
	if err != nil {
		return err
	}
	w, err := acct.IntentWitness(key)
	if err != nil {
		return err
	}
	m, err := s.module(w)
	if err != nil {
		return err
	}

	expired, err := acct.DeleteExpiredIntent(key, s.clock)
	if err != nil {
		s.alert(ctx, err, addr, key, "delete_expired")
		return err
	}
	if err := m.Cleanup(ctx, acct, expired); err != nil {
		return err
	}
	if err := expired.DestroyEmpty(); err != nil {
		return err
	}
	s.record(ctx, bus.KindExpired, acct, key, 0)
	logger.Audit().Info("过期意图已清理",
		slog.String("account", addr.Hex()),
		slog.String("intent_key", key),
	)
	return nil
}

// Intent 返回意图快照。
func (s *Service) Intent(addr common.Address, key string) (View, error) {
	acct, err := s.Account(addr)
	if err != nil {
		return View{}, err
	}
	return acct.IntentView(key)
}

// Intents 返回账户全部存活意图的快照。
func (s *Service) Intents(addr common.Address) ([]View, error) {
	acct, err := s.Account(addr)
	if err != nil {
		return nil, err
	}
	return acct.Views(), nil
}

// Stats 返回账户存活意图的聚合统计。
func (s *Service) Stats(addr common.Address) (IntentStats, error) {
	acct, err := s.Account(addr)
	if err != nil {
		return IntentStats{}, err
	}
	return acct.Stats(s.clock), nil
}

// History 返回最近的审计记录。
func (s *Service) History(ctx context.Context, limit int) ([]mysql.IntentRecord, error) {
	if s.repo == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "审计仓库未初始化")
	}
	return s.repo.ListLatest(ctx, limit)
}

// alert 在错误码标记为需要告警时把事件广播给已注入的分发器。
func (s *Service) alert(ctx context.Context, err error, addr common.Address, key, operation string) {
	s.mu.RLock()
	dispatcher := s.alerts
	s.mu.RUnlock()
	if dispatcher == nil {
		return
	}
	event, ok := alerting.FromError(err, addr.Hex(), key, operation)
	if !ok {
		return
	}
	if notifyErr := dispatcher.Notify(ctx, event); notifyErr != nil {
		logger.L().Warn("告警发送失败", slog.Any("error", notifyErr))
	}
}

// record 把一次迁移写入审计仓库并投递到事件总线。两者都是尽力而为：
// 失败只记日志，不阻断生命周期本身。
func (s *Service) record(ctx context.Context, kind bus.Kind, acct *Account, key string, actionCount int) {
	now := s.clock.Now()
	metrics.ObserveIntentEvent(string(kind))
	if s.repo != nil {
		record := mysql.IntentRecord{
			Account:     acct.Address().Hex(),
			IntentKey:   key,
			Kind:        string(kind),
			ActionCount: actionCount,
			OccurredAt:  now,
		}
		if view, err := acct.IntentView(key); err == nil {
			record.Role = view.Role
			record.Description = view.Description
		}
		if err := s.repo.Save(ctx, record); err != nil {
			logger.L().Warn("审计记录写入失败", slog.Any("error", err), slog.String("intent_key", key))
		}
	}
	if s.publisher != nil {
		event := bus.NewEvent(kind, acct.Address().Hex(), key)
		if err := s.publisher.Publish(ctx, event); err != nil {
			logger.L().Warn("事件投递失败", slog.Any("error", err), slog.String("intent_key", key))
		}
	}
}
