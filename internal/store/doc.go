// Package store provides the SQLite-backed, transactional, reactive storage
// for the oink ledger.
//
// The store holds two tables:
//   - check_ins: one row per calendar date with the balance after that day
//   - cash_outs: append-only record of rewards, with before/after balances
//
// # Transactions
//
// Writes go through Store.Write: one write transaction at a time (a mutex
// plus a single writer connection that begins with BEGIN IMMEDIATE). A
// failed write rolls back completely. After Commit returns, the set of
// tables whose rows changed is published to the live.Tracker, never before.
//
// Reads go through Store.View: each call is one read transaction on the
// reader pool, so every query inside it sees the same snapshot.
//
// # Live queries
//
// The Watch* methods turn a fixed read into a live.Stream that re-runs the
// read whenever a committed write touches one of its tables.
//
// # Database Configuration
//
//   - WAL mode: readers never block the writer
//   - synchronous=NORMAL: durable across process crashes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - PRAGMA user_version: schema version tag, checked on Open
package store
