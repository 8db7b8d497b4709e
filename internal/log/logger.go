package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger.
type Logger struct {
	logger zerolog.Logger
	file   *os.File
}

var (
	mu           sync.RWMutex
	globalLogger *Logger
)

// init logs to stderr, coloured when attached to a terminal.
func init() {
	globalLogger = &Logger{logger: newConsole(os.Stderr, zerolog.InfoLevel)}
}

func newConsole(f *os.File, level zerolog.Level) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    !isatty.IsTerminal(f.Fd()),
		TimeFormat: "2006/01/02 15:04:05.000000",
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetOutput sends log lines to w as JSON.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level := globalLogger.logger.GetLevel()
	closeFile()
	globalLogger = &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// SetFileOutput configures the logger to append JSON lines to filename.
func SetFileOutput(filename string) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	level := globalLogger.logger.GetLevel()
	closeFile()
	globalLogger = &Logger{
		logger: zerolog.New(file).Level(level).With().Timestamp().Logger(),
		file:   file,
	}
	return nil
}

// SetLevel parses "debug", "info", "warn" or "error".
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	mu.Lock()
	defer mu.Unlock()
	globalLogger.logger = globalLogger.logger.Level(lvl)
	return nil
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger.logger
}

func emit(e *zerolog.Event, msg string, args []any) {
	if len(args)%2 == 1 {
		args = append(args, "(MISSING)")
	}
	e.Fields(args).Msg(msg)
}

// Standard logging methods. args are alternating keys and values.
func Debug(msg string, args ...any) {
	l := current()
	emit(l.Debug(), msg, args)
}

func Info(msg string, args ...any) {
	l := current()
	emit(l.Info(), msg, args)
}

func Warn(msg string, args ...any) {
	l := current()
	emit(l.Warn(), msg, args)
}

func Error(msg string, args ...any) {
	l := current()
	emit(l.Error(), msg, args)
}

func closeFile() {
	if globalLogger != nil && globalLogger.file != nil {
		globalLogger.file.Close()
	}
}

// Close closes the log file, if any, and returns to stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	level := globalLogger.logger.GetLevel()
	closeFile()
	globalLogger = &Logger{logger: newConsole(os.Stderr, level)}
}
