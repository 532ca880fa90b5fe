// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

Domain types: Account, Position, Candidate, VotingSession, Vote.

Requests carry validate tags checked by the validation package, for example
CastVoteRequest, UpdateDetailsRequest and CreateSessionRequest.

ResultsResponse maps position id to candidate id to vote count. Every active
candidate of every position appears, with zero when nobody voted for them.

All JSON uses camelCase field names.
*/
package models
