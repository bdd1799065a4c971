// internal/repository/postgres_store.go
package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresStore implements Store on sqlx. ext is either the pool or the
// open transaction.
type PostgresStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, ext: db}
}

func (s *PostgresStore) Campaigns() CampaignRepositoryInterface {
	return &CampaignRepository{DB: s.ext}
}

func (s *PostgresStore) Messages() MessageRepositoryInterface {
	return &MessageRepository{DB: s.ext}
}

func (s *PostgresStore) Replies() ReplyRepositoryInterface {
	return &ReplyRepository{DB: s.ext}
}

func (s *PostgresStore) AutoReplies() AutoReplyRepositoryInterface {
	return &AutoReplyRepository{DB: s.ext}
}

func (s *PostgresStore) Restarts() RestartRepositoryInterface {
	return &RestartRepository{DB: s.ext}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&PostgresStore{db: s.db, ext: tx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

var _ Store = (*PostgresStore)(nil)
