// Package monitoring holds the diagnostic logger shared by the evaluation
// packages. The CLI logs directly with the log package; library code goes
// through Logf so tests can capture or mute it.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with the WARNING: prefix used for recoverable
// data problems (unpaired files, truncated lists, threshold ties).
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}
