package postgres

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"gomarket_import/config"
	"gomarket_import/pkg/logger"
)

const maxRetries = 10
const dbMaxOpenConns = 20
const retryDelay = 5 * time.Second

type PostgresDatabase struct {
	config.DatabaseConfig
	db  *sql.DB
	mu  sync.Mutex // Для защиты доступа к db
	log logger.Logger
}

func NewPgConnector(dbConfig config.DatabaseConfig, log logger.Logger) *PostgresDatabase {
	return &PostgresDatabase{DatabaseConfig: dbConfig, log: log}
}

func (pg *PostgresDatabase) Connect() (*sql.DB, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db != nil {
		return pg.db, nil
	}

	conStr := pg.GetConnectionString()
	attempt := 0
	operation := func() error {
		attempt++
		db, err := sql.Open("postgres", conStr)
		if err != nil {
			pg.log.Warn("Failed to connect to Postgres (attempt %d/%d): %v", attempt, maxRetries, err)
			return err
		}
		db.SetMaxOpenConns(dbMaxOpenConns)

		if err := db.Ping(); err != nil {
			pg.log.Warn("Failed to ping Postgres db (attempt %d/%d): %v", attempt, maxRetries, err)
			db.Close()
			return err
		}
		pg.db = db
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries-1)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", attempt, err)
	}

	pg.log.Log("Successfully connected to Postgres: %s:%s/%s", pg.Host, pg.Port, pg.DBName)
	return pg.db, nil
}

func (pg *PostgresDatabase) Ping() error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db == nil {
		return fmt.Errorf("database connection is not established")
	}

	if err := pg.db.Ping(); err != nil {
		pg.db.Close()
		pg.db = nil
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
