// Package debug wires zerolog console output for the semsync CLI:
// millisecond timestamps and caller locations formatted as
// package:file:line, optionally colorized for terminals.
package debug

import (
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// NewConsoleLogger builds a logger writing human-readable console output
// to w at the given level, with the custom time and caller hooks
// installed.
func NewConsoleLogger(w io.Writer, level zerolog.Level, colorize bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, NoColor: !colorize, PartsExclude: []string{"time", "caller"}}
	return zerolog.New(out).
		Level(level).
		Hook(TimeHook{}).
		Hook(CallerHook{WithColor: colorize})
}

// TimeHook stamps events with millisecond precision. Format overrides
// the default layout when set.
type TimeHook struct {
	Format string
}

func (t TimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := t.Format
	if format == "" {
		format = "2006-01-02T15:04:05.000Z"
	}
	e.Str("time", time.Now().Format(format))
}

// CallerHook records the call site of the log statement as
// package:file:line.
type CallerHook struct {
	WithColor bool
}

func (c CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(skipFrameCount(e) + 3)
	if !ok {
		return
	}
	pkg, _ := splitFuncName(runtime.FuncForPC(pc).Name())
	e.Str("caller", formatCaller(pkg, file, line, c.WithColor))
}

// skipFrameCount reads the event's unexported skipFrame field so the
// hook reports the caller of the log statement rather than the hook
// machinery itself.
func skipFrameCount(e *zerolog.Event) int {
	v := reflect.ValueOf(e).Elem()
	field := v.FieldByName("skipFrame")
	if field.IsValid() && field.CanAddr() {
		return int(field.Int())
	}
	return 0
}

func splitFuncName(full string) (pkg, function string) {
	lastSlash := strings.LastIndexByte(full, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}
	firstDot := strings.IndexByte(full[lastSlash:], '.') + lastSlash

	pkg = full[:firstDot]
	function = full[firstDot+1:]

	if strings.Contains(pkg, ".(") {
		splt := strings.Split(pkg, ".(")
		pkg = splt[0]
		function = "(" + splt[1] + "." + function
	}
	return pkg, function
}

func formatCaller(pkg, path string, line int, colorize bool) string {
	file := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		file = path[idx+1:]
	}
	if colorize {
		file = color.New(color.Bold).Sprint(file)
		num := color.New(color.FgHiRed, color.Bold).Sprintf("%d", line)
		sep := color.New(color.Faint).Sprint(":")
		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, file, sep, num)
	}
	return fmt.Sprintf("%s:%s:%d", pkg, file, line)
}
