package log

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	colorEnd = []byte("\x1b\x5b00m")
	newLine  = []byte{'\n'}
)

// IOWriter writes log messages to an io.Writer. When the
// output is a terminal, the level prefix is colored.
type IOWriter struct {
	mutex  sync.Mutex
	out    io.Writer
	level  LLevel
	isatty bool
}

func (w *IOWriter) writeLocked(b []byte) (int, error) {
	n, err := w.out.Write(b)
	if l := len(b); l > 0 && b[l-1] != '\n' && err == nil {
		var n1 int
		n1, err = w.out.Write(newLine)
		n += n1
	}
	return n, err
}

func (w *IOWriter) Write(level LLevel, flags int, b []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isatty && flags&(Lshortlevel|Llevel) != 0 && flags&Lcolored != 0 {
		if idx := bytes.IndexByte(b, ']'); idx > 0 {
			var n int
			for _, chunk := range [][]byte{level.colorBeginBytes(), b[:idx+1], colorEnd} {
				nn, err := w.out.Write(chunk)
				n += nn
				if err != nil {
					return n, err
				}
			}
			nn, err := w.writeLocked(b[idx+1:])
			return n + nn, err
		}
	}
	return w.writeLocked(b)
}

func (w *IOWriter) Level() LLevel {
	return w.level
}

// NewIOWriter returns a writer which writes messages with at least
// the given level to out. If out is a terminal, ANSI colors are
// enabled (translated on Windows consoles).
func NewIOWriter(out io.Writer, level LLevel) *IOWriter {
	w := &IOWriter{out: out, level: level}
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			w.isatty = true
			w.out = colorable.NewColorable(f)
		}
	}
	return w
}
