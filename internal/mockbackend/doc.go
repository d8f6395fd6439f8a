// Package mockbackend is an in-memory identity service, profile service and
// gateway for local development and end-to-end tests.
//
// The direct surfaces serve /api/auth/* and /api/user/* with bearer tokens.
// The gateway surface serves both under one origin and keeps the access
// token in an HttpOnly cookie. All surfaces of one Backend share users and
// revoked tokens.
package mockbackend
