// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Connections

Open supports Postgres (lib/pq) and SQLite (modernc.org/sqlite):

	conn, err := db.Open(ctx, db.TypeSQLite, "campus-vote.db")

SQLite runs on a single connection with foreign keys on. Queries use $N
placeholders, which both drivers accept.

# Schema Creation

CreateSchema is safe to call on every start; all tables and indexes use
IF NOT EXISTS.

  - account: identity, matric number, verification flags
  - position, candidate: the ballot
  - voting_session: at most one row has is_active set (partial unique index)
  - vote: UNIQUE(account_id, position_id)

# Constraint Errors

IsUniqueViolation and IsForeignKeyViolation recognise constraint failures from
either driver, so callers can map them to domain errors.
*/
package db
