// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and authorization for the API.

# Sign-in Bridge

The campus identity provider calls POST /auth/signin with a shared secret:

	err := auth.ValidateSharedSecret(presented, cfg.IdentitySecret)

The comparison is constant time.

# Tokens

TokenManager issues and parses HS256 JWTs carrying the account id, email and
role:

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	token, expiresAt, err := tokens.Issue(account)
	claims, err := tokens.Parse(token)

Middleware turns claims into an AuthenticatedAccount stored on the request
context; handlers read it with AccountFromContext.

# Roles

Enforcer is a casbin RBAC model with an embedded policy. Students reach
/auth/me, /student/* and /voting/*; admins inherit those and add /admin/*.

# IP Hashing

HashIP stores a salted, truncated HMAC of the voter's address alongside the
vote instead of the address itself.
*/
package auth
