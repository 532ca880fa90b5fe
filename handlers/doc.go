// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the campus voting API.

# Handler Types

Each handler is a struct holding the services it calls:

  - AuthHandler: sign-in from the identity provider bridge, current account
  - StudentHandler: details, document and face verification
  - VotingHandler: voting status, ballot, cast vote, own votes
  - AdminHandler: positions, candidates, sessions, results, users

Handlers are created via constructor functions:

	votingHandler := handlers.NewVotingHandler(svc, gate, cfg)

Authentication happens in middleware. Handlers read the caller with
auth.AccountFromContext and never look at request headers for identity.

# Activation

Students move through

	POST /student/update-details   → UpdateDetails (matric number, name)
	POST /student/upload-document  → UploadDocument (multipart "document", PDF)
	POST /student/verify-face      → VerifyFace (multipart "faceImage")

and are activated when the face check passes. Verification refusals carry a
reason (invalid_upload, document_rejected, no_face, duplicate_face); an
unreachable verification service returns 502 and leaves the account as it was.

# Voting

	GET  /voting/voting-status → VotingStatus
	GET  /voting/positions     → Positions (activated accounts, open session)
	POST /voting/cast-vote     → CastVote

Refused ballots return 400 with one of the reasons not_activated,
voting_closed, already_voted or invalid_candidate. Activation is read from the
database on every request, not from the token.

# Errors

writeError maps service errors to status codes: 422 validation, 404 not found,
409 conflicts and unmet preconditions, 502 upstream, and 500 "Database error"
for everything else, which is logged.
*/
package handlers
