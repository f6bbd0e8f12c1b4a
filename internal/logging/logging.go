// Package logging provides the leveled logging texture used throughout the
// lobby platform. It wraps the standard library logger rather than pulling
// in a structured-logging dependency: see DESIGN.md for why that matches the
// teacher repo rather than inventing new texture.
package logging

import "log"

// Infof logs routine, expected events (connections, dispatch, lifecycle).
func Infof(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

// Warnf logs recoverable problems that don't need caller attention.
func Warnf(format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

// Errorf logs I/O and supervision failures per spec §7 error-handling policy.
// Validation/conflict errors are reported to the caller and must never be
// logged through this function.
func Errorf(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}
