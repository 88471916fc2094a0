package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Vesting store.
var Migrations = migrate.NewGroup("vesting")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_vesting_balances",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS vesting_balances (
    asset        TEXT PRIMARY KEY,
    decimals     INT NOT NULL DEFAULT 0,
    total_held   TEXT NOT NULL DEFAULT '0',
    total_locked TEXT NOT NULL DEFAULT '0',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (total_locked::NUMERIC <= total_held::NUMERIC)
);
`)
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
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS vesting_schedules (
    id               TEXT PRIMARY KEY,
    beneficiary      TEXT NOT NULL,
    idx              BIGINT NOT NULL,
    asset            TEXT NOT NULL REFERENCES vesting_balances (asset),
    origin           TEXT NOT NULL DEFAULT 'grant',
    total_amount     TEXT NOT NULL,
    claimed_amount   TEXT NOT NULL DEFAULT '0',
    start_time       TIMESTAMPTZ NOT NULL,
    cliff_duration   BIGINT NOT NULL,
    vesting_duration BIGINT NOT NULL,
    is_fixed         BOOLEAN NOT NULL DEFAULT FALSE,
    status           TEXT NOT NULL DEFAULT 'active',
    released_amount  TEXT NOT NULL DEFAULT '0',
    cancelled_at     TIMESTAMPTZ,
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (claimed_amount::NUMERIC <= total_amount::NUMERIC)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vesting_schedules_beneficiary_idx ON vesting_schedules (beneficiary, idx);
CREATE INDEX IF NOT EXISTS idx_vesting_schedules_asset_status ON vesting_schedules (asset, status);
`)
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
				_, err := exec.Exec(ctx, `
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
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_vesting_transfers_operation ON vesting_transfers (operation_id);
CREATE INDEX IF NOT EXISTS idx_vesting_transfers_account ON vesting_transfers (account, created_at);
CREATE INDEX IF NOT EXISTS idx_vesting_transfers_asset ON vesting_transfers (asset, created_at);
CREATE INDEX IF NOT EXISTS idx_vesting_transfers_status ON vesting_transfers (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS vesting_transfers`)
				return err
			},
		},
	)
}
