package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"gomarket_import/config"
)

// SQLiteDatabase -- локальная файловая БД. sqlite допускает одного писателя,
// поэтому пул ограничен одним соединением.
type SQLiteDatabase struct {
	config.DatabaseConfig
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteConnector(dbConfig config.DatabaseConfig) *SQLiteDatabase {
	return &SQLiteDatabase{DatabaseConfig: dbConfig}
}

func (s *SQLiteDatabase) Connect() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	if dir := filepath.Dir(s.Path); dir != "" && s.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", s.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s.db = db
	return s.db, nil
}

func (s *SQLiteDatabase) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("database connection is not established")
	}
	return s.db.Ping()
}

// OpenMemory -- отдельная in-memory БД, живёт пока открыт *sql.DB.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, db.Ping()
}
