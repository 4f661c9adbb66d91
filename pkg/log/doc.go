// Package log provides structured lifecycle logging for the
// subscription manager.
//
// This package defines the Logger interface and Event type for
// capturing registry events (register, unregister, delayed release,
// readiness, teardown). It is separate from operational logging (slog)
// - lifecycle capture provides a complete machine-readable trace of
// what the registry did and when, for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/subs/registry.slog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Kinds
//
// Every structural change emits one event: REGISTER and UNREGISTER for
// client membership, RELEASE_SCHEDULED / RELEASE_CANCELLED /
// RELEASE_FIRED for the delayed-release state machine, READY when the
// provider reports the resource ready, and TEARDOWN when the last
// client leaves and the resource is stopped.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with .slog extension.
// The Reader type streams them back, optionally filtered.
package log
