// Package store persists clipforge entities (projects, assets, transcripts,
// silence maps, clips) and the durable task queue tables.
//
// The same code runs against SQLite (modernc.org/sqlite, the default) and
// Postgres (pgx stdlib driver). Queries are written with ? placeholders and
// rebound per dialect; each dialect carries its own embedded, versioned schema.
//
// Every write is a single statement, so concurrent readers never see a
// partially written row. Project status changes are compare-and-set updates
// guarded by the transition table in status.go, and "latest" lookups order by
// creation time with an insertion sequence as tie breaker so duplicate rows
// from redelivered stages always resolve to one winner.
package store
