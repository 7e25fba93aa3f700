// Package iam (Identity and Access Management) provides account, session and
// organization management for the gatekeeper API.
//
// # Overview
//
// The iam package is organized into sub-packages that work together:
//
//   - iam/user          User entity, password policy, user service
//   - iam/auth          Access tokens, refresh token ledger, middleware
//   - iam/auth/authsrv  Signup, login, sessions, verification and password reset flows
//   - iam/auth/authapi  Fiber handlers and session cookies
//   - iam/otp           Six-digit email codes and the send throttle
//   - iam/organization  Organizations, memberships and roles
//   - iam/secret        Password hashing, code hashing, refresh token generation
//   - iam/iamstore      Repository set, unit of work, Postgres schema
//   - iam/iamcontainer  Dependency graph for cmd/
//
// # Architecture
//
// The package follows a layered architecture:
//
//	HTTP Handler  →  Service Layer  →  Repository Interface  →  Infrastructure (Postgres/Redis)
//
// Each sub-domain exposes its own error registry ("AUTH", "USER", "OTP",
// "ORG"), domain entities, DTOs for API responses and repository interfaces.
//
// # Sessions
//
// Login issues a short-lived HS256 access token and an opaque refresh token.
// Only the SHA-256 hash of a refresh token is stored. Every refresh rotates
// the token: the presented token is revoked and replaced by a successor in
// one unit of work. Presenting a revoked token again is treated as theft and
// revokes every active session of the user.
//
//	login    ──►  T1 (active)
//	refresh  ──►  T1 rotated, T2 (active)
//	refresh T1 again ──► T2 revoked (reused), 401
//
// # Multi-record writes
//
// Services never write two records outside a transaction. They go through
// dbx.Atomically with an iamstore.UnitOfWork, which is backed by Postgres
// in production and by iamstore.MemoryStore in tests:
//
//	out := dbx.Atomically(ctx, uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[*Created] {
//	    ...
//	    return dbx.Committed(created)
//	})
//
// # Quick Start
//
//	iam, err := iamcontainer.New(iamcontainer.Deps{
//	    DB:     db,
//	    Redis:  rdb,
//	    Cfg:    cfg,
//	    Mailer: notifier,
//	    Jobs:   jobs,
//	})
//	if err != nil {
//	    logx.Fatalf("iam: %v", err)
//	}
//	iam.RegisterRoutes(app.Group("/api/v1"))
package iam
