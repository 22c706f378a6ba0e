// Package store keeps a history of finished jobs in SQLite through GORM.
//
// A Recorder subscribed to the job controller writes one JobRecord per job
// when it reaches completed, failed or cancelled. The HTTP server reads the
// history for jobs no longer retained in memory.
package store
