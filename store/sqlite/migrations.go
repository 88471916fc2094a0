package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

const (
	createBalances = `
CREATE TABLE IF NOT EXISTS vesting_balances (
    asset        TEXT PRIMARY KEY,
    decimals     INTEGER NOT NULL DEFAULT 0,
    total_held   TEXT NOT NULL DEFAULT '0',
    total_locked TEXT NOT NULL DEFAULT '0',
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	createSchedules = `
CREATE TABLE IF NOT EXISTS vesting_schedules (
    id               TEXT PRIMARY KEY,
    beneficiary      TEXT NOT NULL,
    idx              INTEGER NOT NULL,
    asset            TEXT NOT NULL REFERENCES vesting_balances (asset),
    origin           TEXT NOT NULL DEFAULT 'grant',
    total_amount     TEXT NOT NULL,
    claimed_amount   TEXT NOT NULL DEFAULT '0',
    start_time       TIMESTAMP NOT NULL,
    cliff_duration   INTEGER NOT NULL,
    vesting_duration INTEGER NOT NULL,
    is_fixed         INTEGER NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'active',
    released_amount  TEXT NOT NULL DEFAULT '0',
    cancelled_at     TIMESTAMP,
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vesting_schedules_beneficiary_idx ON vesting_schedules (beneficiary, idx);
CREATE INDEX IF NOT EXISTS idx_vesting_schedules_asset_status ON vesting_schedules (asset, status);
`

	createTransfers = `
CREATE TABLE IF NOT EXISTS vesting_transfers (
    id           TEXT PRIMARY KEY,
    operation_id TEXT NOT NULL,
    schedule_id  TEXT NOT NULL DEFAULT '',
    direction    TEXT NOT NULL,
    asset        TEXT NOT NULL,
    account      TEXT NOT NULL,
    amount       TEXT NOT NULL,
    custody      TEXT NOT NULL,
    reason       TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'completed',
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vesting_transfers_operation ON vesting_transfers (operation_id);
CREATE INDEX IF NOT EXISTS idx_vesting_transfers_account ON vesting_transfers (account, created_at);
CREATE INDEX IF NOT EXISTS idx_vesting_transfers_asset ON vesting_transfers (asset, created_at);
CREATE INDEX IF NOT EXISTS idx_vesting_transfers_status ON vesting_transfers (status);
`
)

// Migrations is the grove migration group for the Vesting store (SQLite).
var Migrations = migrate.NewGroup("vesting")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_vesting_balances",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, createBalances)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vesting_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_vesting_schedules",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, createSchedules)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vesting_schedules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_vesting_transfers",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, createTransfers)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vesting_transfers`)
				return err
			},
		},
	)
}
