package vesting

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transfer"
)

// unsettledSet holds movements that happened although their operation
// failed and whose reversal has not gone through. While an asset has one,
// the engine refuses to mutate that asset, so a failed claim can never be
// paid out a second time.
type unsettledSet struct {
	mu      sync.Mutex
	entries map[string]*unsettledEntry
}

type unsettledEntry struct {
	rec *transfer.Record
	// persisted is set once the store holds the record as unsettled.
	persisted bool
	// reversed is set once the reversal went through and only the status
	// write is outstanding.
	reversed bool
}

func newUnsettledSet() *unsettledSet {
	return &unsettledSet{entries: make(map[string]*unsettledEntry)}
}

func (u *unsettledSet) add(rec *transfer.Record, persisted bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := rec.ID.String()
	if _, ok := u.entries[key]; ok {
		return
	}
	u.entries[key] = &unsettledEntry{rec: rec, persisted: persisted}
}

// forAsset returns the entries of one asset, oldest first.
func (u *unsettledSet) forAsset(assetID string) []*unsettledEntry {
	u.mu.Lock()
	defer u.mu.Unlock()

	var out []*unsettledEntry
	for _, en := range u.entries {
		if en.rec.Asset == assetID {
			out = append(out, en)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].rec.CreatedAt.Before(out[j].rec.CreatedAt)
	})
	return out
}

func (u *unsettledSet) markReversed(en *unsettledEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	en.reversed = true
}

func (u *unsettledSet) remove(en *unsettledEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.entries, en.rec.ID.String())
}

func (u *unsettledSet) assets() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, en := range u.entries {
		if !seen[en.rec.Asset] {
			seen[en.rec.Asset] = true
			out = append(out, en.rec.Asset)
		}
	}
	sort.Strings(out)
	return out
}

func (u *unsettledSet) records() []*transfer.Record {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]*transfer.Record, 0, len(u.entries))
	for _, en := range u.entries {
		if en.reversed {
			continue
		}
		c := *en.rec
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// loadUnsettled picks up unsettled records left by an earlier run.
func (e *Engine) loadUnsettled(ctx context.Context) error {
	recs, err := e.store.ListTransfers(ctx, transfer.ListOpts{Status: transfer.StatusUnsettled})
	if err != nil {
		return fmt.Errorf("load unsettled transfers: %w", err)
	}
	for _, r := range recs {
		e.unsettled.add(r, true)
	}
	if len(recs) > 0 {
		e.logger.Warn("unsettled transfers pending", "count", len(recs))
	}
	return nil
}

// strand records movements whose reversal failed. The store write is best
// effort; the engine keeps them in memory either way.
func (e *Engine) strand(ctx context.Context, recs []*transfer.Record) {
	for _, r := range recs {
		r.Status = transfer.StatusUnsettled
	}

	persisted := true
	if err := e.store.Commit(ctx, &store.Changeset{Transfers: recs}); err != nil {
		persisted = false
		e.logger.Error("unsettled transfers not persisted",
			"operation", recs[0].OperationID.String(),
			"count", len(recs),
			"error", err,
		)
	}
	for _, r := range recs {
		e.unsettled.add(r, persisted)
	}
}

// settleAsset retries the reversal of every unsettled movement of an asset.
// The caller holds the asset lock. It fails with ErrUnsettledTransfers while
// any movement stays unreversed.
func (e *Engine) settleAsset(ctx context.Context, assetID string) error {
	entries := e.unsettled.forAsset(assetID)
	if len(entries) == 0 {
		return nil
	}

	remaining := 0
	for _, en := range entries {
		if !en.reversed {
			rev := en.rec.Request.Reversed()
			if err := transfer.Execute(ctx, e.transferer, rev); err != nil {
				e.logger.Warn("settlement failed",
					"transfer", en.rec.ID.String(),
					"asset", assetID,
					"account", en.rec.Account,
					"amount", en.rec.Amount.String(),
					"error", err,
				)
				e.plugins.EmitTransferFailed(ctx, rev, err)
				remaining++
				continue
			}
			e.unsettled.markReversed(en)
		}

		settled := *en.rec
		settled.Status = transfer.StatusSettled
		cs := &store.Changeset{Transfers: []*transfer.Record{&settled}}
		if en.persisted {
			cs = &store.Changeset{UpdatedTransfers: []*transfer.Record{&settled}}
		}
		if err := e.store.Commit(ctx, cs); err != nil {
			e.logger.Error("settled transfer not persisted",
				"transfer", en.rec.ID.String(),
				"error", err,
			)
			continue
		}
		e.unsettled.remove(en)
		e.logger.Info("transfer settled",
			"transfer", en.rec.ID.String(),
			"asset", assetID,
			"account", en.rec.Account,
			"amount", en.rec.Amount.String(),
		)
	}

	if remaining > 0 {
		return fmt.Errorf("%w: %w: %d on %s", ErrTransferFailed, ErrUnsettledTransfers, remaining, assetID)
	}
	return nil
}

// UnsettledTransfers returns the movements that happened although their
// operation failed, and that have not been reversed yet.
func (e *Engine) UnsettledTransfers() []*transfer.Record {
	return e.unsettled.records()
}

// SettleTransfers retries the reversal of every unsettled movement. Requires
// a privileged caller. Mutating operations on an asset also retry its
// unsettled movements before they proceed.
func (e *Engine) SettleTransfers(ctx context.Context) (err error) {
	ctx, end := e.span(ctx, "settle_transfers")
	defer end(&err)

	if _, err = e.authorize(ctx, "settle transfers"); err != nil {
		return err
	}

	var errs MultiError
	for _, assetID := range e.unsettled.assets() {
		unlock := e.locks.Lock(assetKey(assetID))
		errs.Add(e.settleAsset(ctx, assetID))
		unlock()
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
