// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are layered with koanf, highest precedence first:

 1. CLI flags
 2. Environment variables, including a .env file (ENV_FILE overrides the path)
 3. The yaml file named by -c or CONFIG_PATH
 4. Built-in defaults

# CLI Flags

	-p  Server port
	-d  Database URL (sqlite path or Postgres connection string)
	-t  Database type: sqlite or postgres
	-c  YAML config file

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE
	JWT_SECRET, TOKEN_TTL, IDENTITY_SHARED_SECRET, IP_HASH_SALT, ADMIN_EMAIL
	LOG_LEVEL, LOG_FORMAT, CORS_ORIGINS, RATE_LIMIT, TRUST_PROXY
	MATRIC_ALLOW_LIST, MAX_DOCUMENT_SIZE
	STORAGE_URL, DOCUMENT_SERVICE_URL, FACE_SERVICE_URL, SERVICE_API_KEY
	UPSTREAM_TIMEOUT, FACE_NAMESPACE, FACE_DUPLICATE_THRESHOLD

CORS_ORIGINS and MATRIC_ALLOW_LIST are comma separated.

# Validation

ParseFlags returns an error if:

  - DATABASE_URL is empty or DATABASE_TYPE is not sqlite or postgres
  - JWT_SECRET is shorter than 32 characters
  - IDENTITY_SHARED_SECRET is empty
  - MAX_DOCUMENT_SIZE is not a size humanize can parse ("10MiB", "5 MB")

IP_HASH_SALT falls back to JWT_SECRET.
*/
package cliparse
