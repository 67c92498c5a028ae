package database

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connection bundles the raw connection used for DDL, COPY and migrations
// with the gorm handle used by the catalog. Both share one pool.
type Connection struct {
	SQL  *sql.DB
	Gorm *gorm.DB
}

// Open connects to PostgreSQL through lib/pq and layers gorm over the same
// pool.
func Open(dbURL string) (*Connection, error) {
	sqlDB, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &Connection{SQL: sqlDB, Gorm: gormDB}, nil
}

func (c *Connection) Close() error {
	return c.SQL.Close()
}
