// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package runtime

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/go-stack/stack"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
)

// Lvl is a log level, ordered from most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	}
	return "?"
}

var lvlColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgRed, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Logger is a leveled, structured-args logger in the teacher's idiom
// (go-probeum/log): one call signature per level, taking a message and an
// alternating key/value tail.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	lvl      Lvl
}

// NewLogger wraps w (typically os.Stderr) with go-colorable so ANSI escapes
// behave on Windows consoles too, and enables coloring only when go-isatty
// reports a real terminal — piping lucore's stderr to a file or CI log
// produces plain text.
func NewLogger(w io.Writer, lvl Lvl) *Logger {
	wrapped := w
	colorize := false
	if f, ok := w.(*os.File); ok {
		wrapped = colorable.NewColorable(f)
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{out: wrapped, colorize: colorize, lvl: lvl}
}

func (l *Logger) log(lvl Lvl, msg string, args ...interface{}) {
	if lvl > l.lvl {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tag := lvl.String()
	if l.colorize {
		tag = lvlColor[lvl].Sprint(tag)
	}
	fmt.Fprintf(l.out, "%s[%s] %s", time.Now().Format("15:04:05.000"), tag, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", args[i], args[i+1])
	}
	if lvl == LvlCrit {
		fmt.Fprintf(l.out, "\n%s", stack.Trace().TrimRuntime())
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Trace(msg string, args ...interface{}) { l.log(LvlTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LvlDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LvlInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LvlWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LvlError, msg, args...) }

// Crit logs at the highest severity with a captured call-stack trace
// (go-stack/stack) and, unlike every other level, always fires regardless
// of the configured threshold — a Crit record signals a host-level
// invariant violation, not a Lua-level error.
func (l *Logger) Crit(msg string, args ...interface{}) {
	saved := l.lvl
	l.lvl = LvlCrit
	l.log(LvlCrit, msg, args...)
	l.lvl = saved
}

// Dump renders v with go-spew's cycle-safe deep printer rather than "%v":
// value.Value's object payloads (tables, in particular) can be directly
// cyclic, which fmt would recurse on forever.
func Dump(v interface{}) string {
	return spew.Sdump(v)
}
