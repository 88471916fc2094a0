// Package vesting provides a token vesting engine with a custody ledger for
// Go applications.
//
// Vesting is designed as a library, not a service. Import it directly into
// your Go application and back it with the store that fits your deployment.
// It provides:
//
//   - Linear vesting schedules with a cliff, per beneficiary and asset
//   - Administrative grants funded from an unlocked supply pool
//   - Purchases priced in approved payment assets, with a threshold bonus
//   - Swaps of authorized assets at a configured ratio
//   - A per-asset ledger tracking held and locked supply
//   - Pluggable asset movement through a Transferer collaborator
//   - Audit trail and Prometheus metrics via plugins
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/vesting"
//	    "github.com/xraph/vesting/store/memory"
//	)
//
//	e := vesting.New(memory.New(),
//	    vesting.WithAuthorizer(vesting.NewAdminSet("admin")),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Assets are registered once and funded through deposits:
//
//	adm := vesting.WithCaller(ctx, "admin")
//	e.RegisterAsset(adm, "TKN", 18)
//	e.Deposit(adm, "TKN", "treasury", vesting.Units(1_000_000, 18))
//
// Schedules lock part of the unlocked supply for a beneficiary:
//
//	s, err := e.Grant(adm, vesting.GrantRequest{
//	    Beneficiary: "alice",
//	    Amount:      vesting.Units(1000, 18),
//	    Params: vesting.Params{
//	        Asset:           "TKN",
//	        CliffDuration:   vesting.Weeks(4),
//	        VestingDuration: vesting.Weeks(52),
//	        StartTime:       now,
//	    },
//	}, now)
//
// Beneficiaries claim whatever has vested since their last claim:
//
//	res, err := e.Claim(ctx, "alice", s.Index, time.Now())
//
// Vested amounts follow floor(total * elapsed / duration) once the cliff has
// passed. All amounts are unsigned 256-bit integers in base units; nothing is
// ever rounded up.
//
// # Stores
//
// Every store commits a changeset atomically. The postgres and sqlite stores
// read through Grove and write inside a database transaction. The mongo store
// writes inside a session transaction and needs a replica set.
//
// # Unsettled transfers
//
// When an operation fails after moving funds, the engine reverses the
// movements. A movement whose reversal also fails is recorded as unsettled
// and the engine refuses to mutate its asset until the reversal goes
// through. Mutating operations retry it, and so does SettleTransfers.
//
// # TypeID
//
// Schedules, transfers and operations use TypeID identifiers:
//
//	vsch_01h2xcejqtf2nbrexx3vqjhp41  // Schedule ID
//	xfer_01h2xcejqtf2nbrexx3vqjhp41  // Transfer ID
//	op_01h455vb4pex5vsknk084sn02q    // Operation ID
package vesting
