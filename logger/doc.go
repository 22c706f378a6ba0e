// Package logger provides structured logging for mediascribe on top of
// zerolog.
//
// Loggers are component- or job-scoped and take optional field maps:
//
//	log := logger.Get("jobs").WithJob(id)
//	log.Info("segment transcribed", logger.Fields("segment", 2))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"   # or json
//	  output: "stderr"
package logger
