// Package log implements a leveled logger which can send its
// messages to multiple writers, each one with its own level.
package log

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const (
	// Ldate prints the date in the local time zone: 2009/01/23
	Ldate = 1 << iota
	// Ltime prints the time in the local time zone: 01:23:23
	Ltime
	// Lmicroseconds prints microsecond resolution: 01:23:23.123123. Assumes Ltime.
	Lmicroseconds
	// Llongfile prints the full file name and line number: /a/b/c/d.go:23
	Llongfile
	// Lshortfile prints the final file name element and line number: d.go:23.
	Lshortfile
	// Llevel prints the level name: [Info]
	Llevel
	// Lshortlevel prints the level initial: [I]
	Lshortlevel
	// Lcolored colors the level when writing to a terminal.
	Lcolored
	LstdFlags = Ldate | Ltime | Lshortlevel | Lcolored
)

// Logger formats messages and sends them to its writers. A Logger
// can be used simultaneously from multiple goroutines.
type Logger struct {
	mu      sync.Mutex
	prefix  string
	flags   int
	level   LLevel
	writers []Writer
}

// Std is the standard logger, writing to os.Stderr. It's used by the
// package level functions.
var Std = New(NewIOWriter(os.Stderr, LDebug), "", LstdFlags, LDefault)

// New returns a new Logger. Messages with a level lower than level are
// discarded before being formatted.
func New(w Writer, prefix string, flags int, level LLevel) *Logger {
	l := &Logger{prefix: prefix, flags: flags, level: level}
	if w != nil {
		l.writers = []Writer{w}
	}
	return l
}

func (l *Logger) Level() LLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) SetLevel(level LLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Flags() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flags
}

func (l *Logger) SetFlags(flags int) {
	l.mu.Lock()
	l.flags = flags
	l.mu.Unlock()
}

func (l *Logger) Prefix() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prefix
}

func (l *Logger) SetPrefix(prefix string) {
	l.mu.Lock()
	l.prefix = prefix
	l.mu.Unlock()
}

// AddWriter adds a new writer. Messages are sent to every writer
// whose level is lower or equal than the message level.
func (l *Logger) AddWriter(w Writer) {
	l.mu.Lock()
	l.writers = append(l.writers, w)
	l.mu.Unlock()
}

// Writers returns a copy of the writers in this logger.
func (l *Logger) Writers() []Writer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Writer(nil), l.writers...)
}

func (l *Logger) formatHeader(buf *bytes.Buffer, t time.Time, level LLevel, file string, line int) {
	if l.flags&(Llevel|Lshortlevel) != 0 {
		buf.WriteByte('[')
		if l.flags&Llevel != 0 {
			buf.WriteString(level.String())
		} else {
			buf.WriteString(level.Initial())
		}
		buf.WriteString("] ")
	}
	buf.WriteString(l.prefix)
	if l.flags&Ldate != 0 {
		buf.WriteString(t.Format("2006/01/02 "))
	}
	if l.flags&(Ltime|Lmicroseconds) != 0 {
		if l.flags&Lmicroseconds != 0 {
			buf.WriteString(t.Format("15:04:05.000000 "))
		} else {
			buf.WriteString(t.Format("15:04:05 "))
		}
	}
	if l.flags&(Lshortfile|Llongfile) != 0 {
		if l.flags&Lshortfile != 0 {
			file = filepath.Base(file)
		}
		fmt.Fprintf(buf, "%s:%d: ", file, line)
	}
}

// Output writes the output for a logging event. calldepth is the
// number of stack frames to skip when computing the file name and line
// number when Llongfile or Lshortfile are set.
func (l *Logger) Output(calldepth int, level LLevel, s string) error {
	l.mu.Lock()
	if level < l.level || len(l.writers) == 0 {
		l.mu.Unlock()
		return nil
	}
	var file string
	var line int
	if l.flags&(Lshortfile|Llongfile) != 0 {
		l.mu.Unlock()
		var ok bool
		if _, file, line, ok = runtime.Caller(calldepth); !ok {
			file = "???"
			line = 0
		}
		l.mu.Lock()
	}
	var buf bytes.Buffer
	l.formatHeader(&buf, time.Now(), level, file, line)
	buf.WriteString(s)
	flags := l.flags
	writers := l.writers
	l.mu.Unlock()
	b := buf.Bytes()
	var err error
	for _, w := range writers {
		if level < w.Level() {
			continue
		}
		if _, werr := w.Write(level, flags, b); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Output(2, LDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Output(2, LInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Output(2, LWarning, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Output(2, LError, fmt.Sprintf(format, args...))
}

// Panicf logs the message at the panic level and then panics
// with it.
func (l *Logger) Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	l.Output(2, LPanic, s)
	panic(s)
}

// Fatalf logs the message at the fatal level and then exits
// with status 1.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.Output(2, LFatal, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// SetLevel sets the level for the standard logger.
func SetLevel(level LLevel) {
	Std.SetLevel(level)
}

func Debugf(format string, args ...interface{}) {
	Std.Output(2, LDebug, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	Std.Output(2, LInfo, fmt.Sprintf(format, args...))
}

func Warningf(format string, args ...interface{}) {
	Std.Output(2, LWarning, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	Std.Output(2, LError, fmt.Sprintf(format, args...))
}

func Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	Std.Output(2, LPanic, s)
	panic(s)
}

func Fatalf(format string, args ...interface{}) {
	Std.Output(2, LFatal, fmt.Sprintf(format, args...))
	os.Exit(1)
}
