// Package server exposes the job controller over HTTP.
//
// The Gin engine runs behind h2c, with CORS and body size limits applied
// ahead of routing. Gin middleware (server/middleware) adds recovery,
// request ids, tracing with request metrics, request logging, bearer token
// auth and a submission rate limit.
//
// Routes:
//
//	POST   /api/v1/jobs             submit a job
//	GET    /api/v1/jobs             list live jobs, or ?history=true for the store
//	GET    /api/v1/jobs/:id         job snapshot
//	DELETE /api/v1/jobs/:id         cancel (idempotent)
//	GET    /api/v1/jobs/:id/events  job events as Server-Sent Events
//	GET    /api/v1/events           events of every job
//	GET    /health, /health/live, /version
package server
