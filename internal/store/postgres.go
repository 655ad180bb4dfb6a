package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Balances are stored as NUMERIC for exact decimal precision; the position
// list is stored as JSONB since positions are only ever read and written
// as part of their owning account.
//
// Schema:
//
//	CREATE TABLE accounts (
//	    address             TEXT PRIMARY KEY,
//	    on_chain_balance    NUMERIC NOT NULL,
//	    reserved_collateral NUMERIC NOT NULL,
//	    positions           JSONB NOT NULL DEFAULT '[]',
//	    version             BIGINT NOT NULL,
//	    updated_at          TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadAccount(ctx context.Context, address string) (*model.Account, error) {
	var a model.Account
	var balance, reserved string
	var positions []byte

	err := s.pool.QueryRow(ctx,
		`SELECT address, on_chain_balance::TEXT, reserved_collateral::TEXT, positions, version
		 FROM accounts WHERE address = $1`, address).
		Scan(&a.Address, &balance, &reserved, &positions, &a.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", address, err)
	}

	if a.OnChainBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("load account %s: bad balance: %w", address, err)
	}
	if a.ReservedCollateral, err = decimal.NewFromString(reserved); err != nil {
		return nil, fmt.Errorf("load account %s: bad reserved: %w", address, err)
	}
	if err := json.Unmarshal(positions, &a.Positions); err != nil {
		return nil, fmt.Errorf("load account %s: bad positions: %w", address, err)
	}

	return &a, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acct *model.Account) error {
	positions, err := json.Marshal(acct.Positions)
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.Address, err)
	}
	if acct.Positions == nil {
		positions = []byte("[]")
	}

	now := time.Now().UTC()

	if acct.Version == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO accounts (address, on_chain_balance, reserved_collateral, positions, version, updated_at)
			 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, 1, $5)
			 ON CONFLICT (address) DO NOTHING`,
			acct.Address, acct.OnChainBalance.String(), acct.ReservedCollateral.String(),
			positions, now,
		)
		if err != nil {
			return fmt.Errorf("save account %s: %w", acct.Address, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		acct.Version = 1
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET on_chain_balance = $2::NUMERIC,
		     reserved_collateral = $3::NUMERIC,
		     positions = $4,
		     version = version + 1,
		     updated_at = $5
		 WHERE address = $1 AND version = $6`,
		acct.Address, acct.OnChainBalance.String(), acct.ReservedCollateral.String(),
		positions, now, acct.Version,
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	acct.Version++
	return nil
}
