// internal/db/db.go
package db

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Connect opens the Postgres pool and pings it once.
func Connect(ctx context.Context, dsn string, log logrus.FieldLogger) (*sqlx.DB, error) {
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	log.Info("✅ Connected to database")
	return conn, nil
}

// ApplyFile runs every statement of a SQL file in one Exec call.
func ApplyFile(ctx context.Context, conn *sqlx.DB, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if _, err := conn.ExecContext(ctx, string(body)); err != nil {
		return errors.Wrapf(err, "apply %s", path)
	}
	return nil
}
