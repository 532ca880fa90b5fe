// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Every request gets an ID and an access log line:

	r.Use(middleware.RequestID, middleware.WithLogging)

RequestID reuses X-Request-ID when the client sends one and echoes it back.
WithLogging logs request start at debug level and completion (status,
duration_ms) at info, or error for 5xx responses, through logging.Ctx so the
request_id is attached.

# Metrics

Metrics counts requests and latency labelled by the chi route pattern,
so /admin/voting-sessions/{id}/start is one series regardless of id.

# Authentication and Roles

	r.Use(middleware.RequireAuth(tokens))
	r.Use(middleware.RequireRole(enforcer))

RequireAuth parses the bearer token and stores an auth.AuthenticatedAccount
in the request context. RequireRole asks the casbin enforcer whether that
account's role may call the path and method; students get 403 on /admin/*.

# CORS

	r.Use(middleware.CORS(cfg.CORSOrigins))

Backed by go-chi/cors. Credentials are only allowed when the origin list is
explicit.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusNotFound, "Position not found")
	middleware.ReasonResponse(w, http.StatusBadRequest, "already_voted", msg)

ParseJSONBody decodes a single JSON object of at most 1 MiB and rejects
unknown fields.

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Reads r.RemoteAddr only. With TRUST_PROXY set the router installs chi's
RealIP first, so the proxy's forwarded address is used instead. Used for the
rate limit key and the salted IP hash stored with each vote.
*/
package middleware
