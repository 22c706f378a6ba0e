// Package auth issues and verifies the bearer tokens that protect the job
// API. Tokens are HMAC-signed JWTs carrying "jobs:read" or "jobs:write"
// scopes.
package auth
