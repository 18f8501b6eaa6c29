// Package store provides the persisted side of the harvest: four tables
// (groups, users, posts, comments) behind a narrow accessor interface.
//
// Two backends implement Store: Postgres (pgx connection pool, the
// production backend) and Memory (maps, used by tests). Inserts are
// duplicate-tolerant — ON CONFLICT DO NOTHING on Postgres, first-write-wins
// in memory — so repeated harvest runs and concurrent writers cannot
// produce duplicate rows.
package store
