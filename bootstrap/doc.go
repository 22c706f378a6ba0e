// Package bootstrap runs the lifecycle shared by the mediascribe commands:
// ordered start, ready and stop hooks, a readiness check over the registered
// health checkers, a startup summary, and graceful shutdown on SIGINT or
// SIGTERM.
//
// Long-running commands use Run; one-shot commands use RunTask, whose task
// context is cancelled by the first signal.
package bootstrap
