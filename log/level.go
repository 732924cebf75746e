package log

import (
	"fmt"
	"strings"
)

// LLevel is the severity of a log message. Loggers and writers
// discard messages with a level lower than their own.
type LLevel int

const (
	LDebug LLevel = iota
	LInfo
	LWarning
	LError
	LPanic
	LFatal
	LNone
	LDefault = LInfo
)

type levelInfo struct {
	name      string
	colorcode string
	color     []byte
}

var levels = map[LLevel]*levelInfo{
	LDebug:   {name: "Debug", colorcode: "0;32"},   // Green
	LInfo:    {name: "Info", colorcode: "1;34"},    // Light Blue
	LWarning: {name: "Warning", colorcode: "1;33"}, // Yellow
	LError:   {name: "Error", colorcode: "1;31"},   // Light Red
	LPanic:   {name: "Panic", colorcode: "0;31"},   // Red
	LFatal:   {name: "Fatal", colorcode: "0;31"},
	LNone:    {name: "None", colorcode: "1;37"}, // White
}

var colorWhite = []byte("\x1b\x5b1;37m")

func init() {
	for _, v := range levels {
		v.color = []byte("\x1b\x5b" + v.colorcode + "m")
	}
}

func (l LLevel) String() string {
	if info := levels[l]; info != nil {
		return info.name
	}
	return "Unknown"
}

// Initial returns the first letter of the level name, used
// by the Lshortlevel flag.
func (l LLevel) Initial() string {
	if info := levels[l]; info != nil {
		return info.name[:1]
	}
	return "U"
}

func (l LLevel) Colorcode() string {
	if info := levels[l]; info != nil {
		return info.colorcode
	}
	return "1;37"
}

func (l LLevel) colorBeginBytes() []byte {
	if info := levels[l]; info != nil {
		return info.color
	}
	return colorWhite
}

// ParseLevel returns the level with the given name, case
// insensitive (e.g. "debug", "Warning").
func ParseLevel(s string) (LLevel, error) {
	for k, v := range levels {
		if strings.EqualFold(v.name, s) {
			return k, nil
		}
	}
	return LNone, fmt.Errorf("invalid log level %q", s)
}
