// Package diagnostics configures the structured logger used across the
// scaffolding engine. Components receive a *zap.Logger and report
// recoverable events (package load failures, dropped candidates, refused
// proxies) instead of failing the run.
package diagnostics

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. verbose switches the level from Warn to
// Debug; output is console-encoded on stderr.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything. Used as the default in
// library entry points and in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}
