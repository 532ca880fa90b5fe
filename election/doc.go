// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package election holds the voting rules.

Gate tracks each account through NEW, HAS_MATRIC, DOCUMENT_VERIFIED and
ACTIVATED; flags only ever move forward. Service owns sessions, the ballot and
the vote ledger.

CastVote checks, in order, that the account is activated, that a session is
open, that no vote exists for the position and that the candidate is active
and on that position, then inserts inside the same transaction. The
UNIQUE(account_id, position_id) constraint decides concurrent duplicates; the
loser gets ReasonAlreadyVoted.

StartSession deactivates every other session and activates the target in one
transaction, so at most one session is ever active.
*/
package election
