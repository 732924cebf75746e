package log

// Interface is implemented by *Logger. Packages which accept an
// optional logger should depend on Interface rather than *Logger.
type Interface interface {
	// Debugf formats its arguments like fmt.Printf and records a
	// log message at the debug level.
	Debugf(format string, args ...interface{})
	// Infof formats its arguments like fmt.Printf and records a
	// log message at the info level.
	Infof(format string, args ...interface{})
	// Warningf formats its arguments like fmt.Printf and records a
	// log message at the warning level.
	Warningf(format string, args ...interface{})
	// Errorf formats its arguments like fmt.Printf and records a
	// log message at the error level.
	Errorf(format string, args ...interface{})
}

var _ Interface = (*Logger)(nil)
