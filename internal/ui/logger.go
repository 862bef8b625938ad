// Package ui provides the two user-facing output surfaces this project
// needs: a colorized, serialized progress writer for interactive use and a
// zap-backed structured logger for --message-format json.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/SUSE/termui"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Logger serializes colorized progress output and, when configured,
// mirrors every message into a structured zap logger for machine
// consumption.
type Logger struct {
	mu       sync.Mutex
	ui       *termui.UI
	zap      *zap.Logger
	colorize bool
}

// New builds a Logger writing human output to out and, if structured is
// non-nil, mirroring every message to it as well.
func New(out io.Writer, structured *zap.Logger, colorize bool) *Logger {
	return &Logger{ui: termui.New(out, out, nil), zap: structured, colorize: colorize}
}

// Infof prints an informational line, colored green in interactive mode.
func (l *Logger) Infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.println(color.GreenString(msg))
	if l.zap != nil {
		l.zap.Info(msg)
	}
}

// Errorf prints an error line, colored red in interactive mode.
func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.println(color.RedString(msg))
	if l.zap != nil {
		l.zap.Error(msg)
	}
}

// Warnf prints a warning line, colored yellow in interactive mode —
// used for build-script "forge:warning=" directives.
func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.println(color.YellowString(msg))
	if l.zap != nil {
		l.zap.Warn(msg)
	}
}

func (l *Logger) println(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ui.Println(line)
}
