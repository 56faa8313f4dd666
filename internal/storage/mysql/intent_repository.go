package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// IntentRecord 表示一次意图生命周期迁移的落库结构。
type IntentRecord struct {
	Account     string `json:"account"`
	IntentKey   string `json:"intent_key"`
	Kind        string `json:"kind"`
	Role        string `json:"role"`
	Description string `json:"description"`
	ActionCount int    `json:"action_count"`
	OccurredAt  int64  `json:"occurred_at"`
}

// Repository 抽象生命周期审计数据的持久化接口。
type Repository interface {
	Save(ctx context.Context, record IntentRecord) error
	ListLatest(ctx context.Context, limit int) ([]IntentRecord, error)
}

// ErrUnsupportedDriver 表示配置了未知的存储驱动。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// MemoryRepository 使用本地 JSON 行文件模拟 MySQL，方便单机迭代。
type MemoryRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []IntentRecord
}

// NewMemoryRepository 创建一个内存审计仓库。
func NewMemoryRepository(dataDir string) (*MemoryRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &MemoryRepository{dataFile: filepath.Join(dataDir, "intents.log")}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录生命周期迁移。
func (m *MemoryRepository) Save(_ context.Context, record IntentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化审计记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}

	m.records = append([]IntentRecord{record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的审计记录，按时间倒序排列。
func (m *MemoryRepository) ListLatest(_ context.Context, limit int) ([]IntentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]IntentRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

func (m *MemoryRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取审计日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []IntentRecord
	for scanner.Scan() {
		var record IntentRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]IntentRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析审计日志失败: %w", err)
	}
	if len(restored) > 512 {
		restored = restored[:512]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLRepository 使用真实的 MySQL 数据库存储审计记录。
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository 创建连接池并初始化数据表。
func NewSQLRepository(ctx context.Context, cfg Config) (*SQLRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (s *SQLRepository) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS intent_events (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        account VARCHAR(66) NOT NULL,
        intent_key VARCHAR(255) NOT NULL,
        kind VARCHAR(64) NOT NULL,
        role VARCHAR(255) DEFAULT '',
        description TEXT,
        action_count INT NOT NULL DEFAULT 0,
        occurred_at BIGINT NOT NULL,
        INDEX idx_account_key (account, intent_key),
        INDEX idx_occurred_at (occurred_at)
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 intent_events 表失败: %w", err)
	}
	return nil
}

// Save 将审计记录写入 MySQL。
func (s *SQLRepository) Save(ctx context.Context, record IntentRecord) error {
	const stmt = `INSERT INTO intent_events
        (account, intent_key, kind, role, description, action_count, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.Account,
		record.IntentKey,
		record.Kind,
		record.Role,
		record.Description,
		record.ActionCount,
		record.OccurredAt,
	); err != nil {
		return fmt.Errorf("写入审计记录失败: %w", err)
	}
	return nil
}

// ListLatest 返回最近的审计记录，按时间倒序排列。
func (s *SQLRepository) ListLatest(ctx context.Context, limit int) ([]IntentRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const stmt = `SELECT account, intent_key, kind, role, description, action_count, occurred_at
        FROM intent_events ORDER BY occurred_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("查询审计记录失败: %w", err)
	}
	defer rows.Close()

	var results []IntentRecord
	for rows.Next() {
		var record IntentRecord
		if err := rows.Scan(
			&record.Account,
			&record.IntentKey,
			&record.Kind,
			&record.Role,
			&record.Description,
			&record.ActionCount,
			&record.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("扫描审计记录失败: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历审计记录失败: %w", err)
	}
	return results, nil
}

// Close 关闭数据库连接。
func (s *SQLRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*SQLRepository)(nil)
)
