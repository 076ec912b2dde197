package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// 归档事件类型。
const (
	EventCreated = "created"
	EventReplied = "replied"
)

// SessionRecord 表示会话归档的一行。创建与回复分别落一条记录。
type SessionRecord struct {
	ID           int64  `json:"id,omitempty"`
	SessionID    string `json:"session_id"`
	Event        string `json:"event"`
	Query        string `json:"query"`
	QueryType    string `json:"query_type"`
	Specialist   string `json:"specialist"`
	UserAddress  string `json:"user_address"`
	ReplyPreview string `json:"reply_preview,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// SessionRepository 抽象会话归档的持久化接口。
type SessionRepository interface {
	Save(ctx context.Context, record SessionRecord) error
	ListLatest(ctx context.Context, limit int) ([]SessionRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]SessionRecord, error)
}

// MemorySessionRepository 使用本地 JSON 文件模拟 MySQL 的效果，方便迭代开发。
type MemorySessionRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []SessionRecord
}

const memoryRetention = 512

// NewMemorySessionRepository 创建一个内存会话归档。
func NewMemorySessionRepository(dataDir string) (*MemorySessionRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "sessions.log")
	repo := &MemorySessionRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录归档事件。
func (m *MemorySessionRepository) Save(_ context.Context, record SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开会话日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化会话记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入会话日志失败: %w", err)
	}

	m.records = append([]SessionRecord{record}, m.records...)
	if len(m.records) > memoryRetention {
		m.records = m.records[:memoryRetention]
	}
	return nil
}

// ListLatest 返回最近的归档记录，按时间倒序排列。
func (m *MemorySessionRepository) ListLatest(_ context.Context, limit int) ([]SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	results := make([]SessionRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// ListBySession 返回指定会话的全部归档事件。
func (m *MemorySessionRepository) ListBySession(_ context.Context, sessionID string) ([]SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SessionRecord
	for _, record := range m.records {
		if record.SessionID == sessionID {
			results = append(results, record)
		}
	}
	return results, nil
}

func (m *MemorySessionRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取会话日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []SessionRecord
	for scanner.Scan() {
		var record SessionRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]SessionRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析会话日志失败: %w", err)
	}

	if len(restored) > memoryRetention {
		restored = restored[:memoryRetention]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLSessionRepository 使用真实的 MySQL 数据库存储会话归档。
type SQLSessionRepository struct {
	db *sql.DB
}

// NewSQLSessionRepository 创建连接池并执行迁移。
func NewSQLSessionRepository(ctx context.Context, cfg Config) (*SQLSessionRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLSessionRepository{db: db}, nil
}

// Save 将归档事件写入 MySQL。
func (s *SQLSessionRepository) Save(ctx context.Context, record SessionRecord) error {
	const stmt = `INSERT INTO sessions
        (session_id, event, query, query_type, specialist, user_address, reply_preview, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.SessionID,
		record.Event,
		record.Query,
		record.QueryType,
		record.Specialist,
		record.UserAddress,
		record.ReplyPreview,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条归档记录。
func (s *SQLSessionRepository) ListLatest(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, event, query, query_type, specialist, user_address, reply_preview, created_at
        FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询会话归档失败: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListBySession 查询指定会话的全部归档事件。
func (s *SQLSessionRepository) ListBySession(ctx context.Context, sessionID string) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, event, query, query_type, specialist, user_address, reply_preview, created_at
        FROM sessions WHERE session_id = ? ORDER BY id DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询会话归档失败: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord
	for rows.Next() {
		var record SessionRecord
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Event,
			&record.Query,
			&record.QueryType,
			&record.Specialist,
			&record.UserAddress,
			&record.ReplyPreview,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("解析会话归档失败: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历会话归档失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLSessionRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ SessionRepository = (*MemorySessionRepository)(nil)
	_ SessionRepository = (*SQLSessionRepository)(nil)
)
