// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the campus voting API.

# Route Registration

NewRouter builds the services and a chi router with all endpoints:

	h, err := router.NewRouter(db, cfg, router.Verifiers{Store: store, Reader: reader, Matcher: matcher})

Every request passes through RequestID, WithLogging, chi's Recoverer,
Metrics and CORS. Sign-in, uploads and cast-vote are rate limited per client
IP with httprate, keyed on RemoteAddr. With cfg.TrustProxy chi's RealIP runs
first and the forwarded address becomes the key.

# Endpoints

Public:

	GET  /health
	GET  /metrics
	POST /auth/signin           - identity provider bridge, X-Identity-Secret
	GET  /voting/voting-status

Bearer token, any role:

	GET  /auth/me
	POST /student/update-details
	POST /student/upload-document
	POST /student/verify-face
	GET  /student/verification-status
	GET  /voting/positions
	POST /voting/cast-vote
	GET  /voting/my-votes

Admin only (casbin policy in auth.Enforcer):

	GET|POST   /admin/positions
	DELETE     /admin/positions/{id}
	GET|POST   /admin/candidates
	PATCH      /admin/candidates/{id}
	DELETE     /admin/candidates/{id}
	GET|POST   /admin/voting-sessions
	POST       /admin/voting-sessions/{id}/start
	POST       /admin/voting-sessions/{id}/end
	GET        /admin/results
	GET        /admin/results/detailed
	GET        /admin/users
*/
package router
