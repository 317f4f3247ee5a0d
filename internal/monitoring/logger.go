// Package monitoring carries a single swappable logging seam used
// across every core package, so nothing reaches for fmt.Println or a
// bespoke logger interface of its own.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Verbose gates per-frame guide-loop chatter. The loop itself always
// logs one line per state transition and per alert regardless of this
// flag; Verbosef is for the high-volume per-frame detail (measured
// offset, HFD, SNR) that would otherwise flood the log at several
// lines a second during guiding.
var Verbose bool

// Verbosef logs through Logf only when Verbose is set, for per-frame
// detail that would otherwise dominate normal guiding output.
func Verbosef(format string, v ...interface{}) {
	if Verbose {
		Logf(format, v...)
	}
}
