// Package log is structured protocol event logging, separate from ordinary
// operational logging: every frame sent/received, every decoded PE
// message, every state transition and protocol-level error can be captured
// as an Event and routed to one or more Logger implementations.
//
// NoopLogger discards everything (the default). SlogAdapter renders events
// through log/slog for development console output. FileLogger persists
// events as CBOR to a file for later replay via Reader. MultiLogger fans
// one event out to several loggers at once, e.g.:
//
//	console := log.NewSlogAdapter(slog.Default())
//	file, _ := log.NewFileLogger("session.pelog")
//	logger := log.NewMultiLogger(console, file)
package log
