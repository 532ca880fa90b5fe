// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the campus-vote API server.

campus-vote runs university elections: students sign in through the campus
identity provider, prove who they are with a registration document and a face
capture, and cast at most one vote per position while an admin-started
session is open.

# Starting the Server

	JWT_SECRET=... IDENTITY_SHARED_SECRET=... go run . -d campus-vote.db

Or against Postgres:

	go run . -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite path or Postgres connection string
  - JWT_SECRET: token signing key, at least 32 characters
  - IDENTITY_SHARED_SECRET: shared with the identity provider bridge

Optional settings include PORT (-p, default 3318), DATABASE_TYPE (-t),
ADMIN_EMAIL, MATRIC_ALLOW_LIST, MAX_DOCUMENT_SIZE and the verification service
URLs. A yaml file named by CONFIG_PATH (-c) supplies the same keys.

# Architecture

  - election: session clock, activation gate, eligibility, vote ledger
  - verification: document and face checks against external services
  - handlers, router, middleware: HTTP surface
  - auth: tokens and role policy
  - db, cliparse, logging, metrics, validation: plumbing
  - supervisor: runs the HTTP server under suture

The external verification clients sit behind circuit breakers; an outage
surfaces as 502 and never changes an account.
*/
package main
