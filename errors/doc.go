// Package errors provides the typed error taxonomy for mediascribe jobs.
// Codes classify failures as fatal, per-segment or fallback-triggering, and
// AppError carries an HTTP status mapping for the API boundary.
package errors
