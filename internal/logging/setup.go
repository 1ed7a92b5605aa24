package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // console, json
	File       string // rotating debug log, empty disables it
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup builds the root logger. Without a file everything goes to console.
// With a file, the file receives every entry down to DEBUG and the console
// only WARN and above.
func Setup(component string, opts Options, console io.Writer) *Logger {
	if console == nil {
		console = os.Stdout
	}
	level := ParseLevel(opts.Level)
	encoder := newEncoder(opts.Format)

	consoleLevel := level.zapLevel()
	if opts.File != "" && consoleLevel < zapcore.WarnLevel {
		consoleLevel = zapcore.WarnLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(console), consoleLevel),
	}

	if opts.File != "" {
		writer := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		// The file always uses JSON so it can be grepped by field
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(writer), zapcore.DebugLevel))
		level = DEBUG
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
	return newLogger(component, level, base)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return newLogger("", ERROR, zap.NewNop())
}
