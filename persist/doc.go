// Package persist keeps a versioned snapshot of whitelisted application
// state across restarts.
//
// A snapshot is a schema version plus one JSON blob per slice name. On Load
// a snapshot written under an older version is upgraded through each
// migration in turn (N to N+1 to ... to current); a missing step, a failing
// step or a snapshot from a newer build falls back to the schema defaults and
// is logged with reason=migration_failed, distinct from reason=first_run.
//
// Save writes only whitelisted slices. Backends store the snapshot in memory,
// in a SQLite file, or in Valkey.
package persist
