package reporter

import (
	"context"
	"errors"

	"judgegate/internal/common/db"
)

const createExecutionLogsTable = `CREATE TABLE IF NOT EXISTS execution_logs (
	id CHAR(36) NOT NULL PRIMARY KEY,
	identity VARCHAR(255) NOT NULL,
	user_id VARCHAR(255) NULL,
	endpoint VARCHAR(32) NOT NULL,
	language VARCHAR(32) NOT NULL,
	code_length INT NOT NULL,
	execution_time_ms BIGINT NOT NULL DEFAULT 0,
	memory_usage_kb BIGINT NOT NULL DEFAULT 0,
	status VARCHAR(64) NOT NULL,
	stdout MEDIUMTEXT NULL,
	stderr MEDIUMTEXT NULL,
	compile_output MEDIUMTEXT NULL,
	test_cases_passed INT NULL,
	test_cases_total INT NULL,
	success_rate DECIMAL(5,2) NULL,
	error_message TEXT NULL,
	created_at DATETIME(3) NOT NULL,
	KEY idx_execution_logs_identity_created (identity, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const insertExecutionLog = `INSERT INTO execution_logs (
	id, identity, user_id, endpoint, language, code_length, execution_time_ms, memory_usage_kb,
	status, stdout, stderr, compile_output, test_cases_passed, test_cases_total, success_rate,
	error_message, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// MySQLLogStore appends execution logs to the execution_logs table.
type MySQLLogStore struct {
	db db.Database
}

var _ Sink = (*MySQLLogStore)(nil)

func NewMySQLLogStore(database db.Database) *MySQLLogStore {
	return &MySQLLogStore{db: database}
}

// EnsureSchema creates the execution_logs table when it does not exist.
func (s *MySQLLogStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database is nil")
	}
	_, err := s.db.Exec(ctx, createExecutionLogsTable)
	return err
}

func (s *MySQLLogStore) Write(ctx context.Context, log ExecutionLog) error {
	if s.db == nil {
		return errors.New("database is nil")
	}
	_, err := s.db.Exec(ctx, insertExecutionLog,
		log.ID,
		log.Identity,
		nullable(log.UserID),
		log.Endpoint,
		log.Language,
		log.CodeLength,
		log.ExecutionTimeMs,
		log.MemoryUsageKB,
		log.Status,
		log.Stdout,
		log.Stderr,
		log.CompileOutput,
		log.TestCasesPassed,
		log.TestCasesTotal,
		log.SuccessRate,
		nullable(log.ErrorMessage),
		log.CreatedAt,
	)
	return err
}

// CountByIdentity returns how many logs an identity has written.
func (s *MySQLLogStore) CountByIdentity(ctx context.Context, identity string) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database is nil")
	}
	var n int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM execution_logs WHERE identity = ?", identity).Scan(&n)
	return n, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
