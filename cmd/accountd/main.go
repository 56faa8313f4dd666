package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"SmartAccount-Chain/internal/account"
	"SmartAccount-Chain/internal/actions/configops"
	"SmartAccount-Chain/internal/actions/vault"
	"SmartAccount-Chain/internal/api"
	"SmartAccount-Chain/internal/bus"
	"SmartAccount-Chain/internal/config"
	"SmartAccount-Chain/internal/observability/alerting"
	"SmartAccount-Chain/internal/policy/multisig"
	"SmartAccount-Chain/internal/storage/mysql"
	"SmartAccount-Chain/pkg/logger"
)

// main 是账户守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("accountd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("SMARTACCOUNT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "accountd.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{cfg.Logging.Output},
		Audit: logger.AuditConfig{
			Enabled:    true,
			Path:       cfg.Logging.AuditFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	repo, closeRepo, err := buildRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	eventBus, err := buildBus(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.L().Warn("关闭事件总线失败", slog.Any("error", err))
		}
	}()

	service := account.NewService(repo, eventBus, account.SystemClock{})
	service.SetPolicyHooks(multisig.Approve, multisig.Disapprove, func(role string) account.Outcome {
		return multisig.NewOutcome(role)
	})
	service.SetAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{}))

	acct, acctVault, err := buildAccount(cfg)
	if err != nil {
		return err
	}
	if err := service.RegisterAccount(acct); err != nil {
		return err
	}
	service.RegisterModule(vault.NewModule(acctVault))
	service.RegisterModule(configops.NewModule())

	logger.L().Info("账户服务启动",
		slog.String("address", acct.Address().Hex()),
		slog.String("listen", cfg.Server.Address),
		slog.String("storage", cfg.Storage.IntentStore.Driver),
		slog.String("bus", cfg.Bus.Driver),
	)

	server := api.NewServer(cfg.Server.Address, service)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildRepository(ctx context.Context, cfg *config.Config) (mysql.Repository, func(), error) {
	switch cfg.Storage.IntentStore.Driver {
	case "", "memory":
		repo, err := mysql.NewMemoryRepository(cfg.Runtime.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	case "mysql":
		lifetime, err := parseDuration(cfg.Storage.IntentStore.ConnMaxLifetime)
		if err != nil {
			return nil, nil, err
		}
		repo, err := mysql.NewSQLRepository(ctx, mysql.Config{
			DSN:             cfg.Storage.IntentStore.DSN,
			MaxOpenConns:    cfg.Storage.IntentStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.IntentStore.MaxIdleConns,
			ConnMaxLifetime: lifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, mysql.ErrUnsupportedDriver
	}
}

func buildBus(cfg *config.Config) (bus.Bus, error) {
	switch cfg.Bus.Driver {
	case "", "memory":
		return bus.NewMemoryBus(1024), nil
	case "redis":
		return bus.NewRedisBus(bus.RedisBusConfig{
			Address:  cfg.Bus.Redis.Addr,
			Password: cfg.Bus.Redis.Password,
			DB:       cfg.Bus.Redis.DB,
			Stream:   cfg.Bus.Redis.Queue,
		})
	case "rabbitmq":
		return bus.NewRabbitMQBus(bus.RabbitMQConfig{
			URL:     cfg.Bus.RabbitMQ.URL,
			Queue:   cfg.Bus.RabbitMQ.Queue,
			Durable: true,
		})
	default:
		return nil, fmt.Errorf("未知的总线驱动: %s", cfg.Bus.Driver)
	}
}

// buildAccount 根据配置组装多签账户：策略配置、依赖白名单与配套金库。
func buildAccount(cfg *config.Config) (*account.Account, *vault.Vault, error) {
	if !common.IsHexAddress(cfg.Account.Address) {
		return nil, nil, fmt.Errorf("account.address 不是合法地址: %q", cfg.Account.Address)
	}
	addr := common.HexToAddress(cfg.Account.Address)

	members := make([]multisig.Member, 0, len(cfg.Account.Members))
	for _, m := range cfg.Account.Members {
		if !common.IsHexAddress(m.Addr) {
			return nil, nil, fmt.Errorf("account.members 含非法地址: %q", m.Addr)
		}
		members = append(members, multisig.Member{Addr: common.HexToAddress(m.Addr), Weight: m.Weight})
	}
	policyCfg, err := multisig.NewConfig(cfg.Account.Threshold, members, cfg.Account.Roles)
	if err != nil {
		return nil, nil, err
	}

	entries := []account.Dep{
		{Name: account.CoreDepName, Addr: moduleAddress(account.CoreDepName), Version: 1},
		{Name: vault.ModuleName, Addr: moduleAddress(vault.ModuleName), Version: 1},
		{Name: configops.ModuleName, Addr: moduleAddress(configops.ModuleName), Version: 1},
	}
	deps, err := account.NewDeps(account.NewAllowlist(entries...), cfg.Account.UnverifiedAllowed, entries)
	if err != nil {
		return nil, nil, err
	}

	acct := account.New(addr, multisig.Policy{}, policyCfg, deps)
	return acct, vault.NewVault(addr), nil
}

// moduleAddress 为进程内模块推导一个稳定的标识地址。
func moduleAddress(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析时长失败 %q: %w", raw, err)
	}
	return d, nil
}
