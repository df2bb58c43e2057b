// Package output provides console logging, styling and prompts.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by NewSplogWithConfig
const (
	EnvDebug          = "GATEKEEPER_DEBUG"
	EnvLogMaxSize     = "GATEKEEPER_LOG_MAX_SIZE"
	EnvLogMaxBackups  = "GATEKEEPER_LOG_MAX_BACKUPS"
	EnvLogMaxAge      = "GATEKEEPER_LOG_MAX_AGE"
	defaultLogMaxSize = 5
)

// consoleHandler prints the message of each record on its own line. The
// file handler carries levels and timestamps, the console does not.
type consoleHandler struct {
	w     io.Writer
	debug bool
	quiet *bool
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level > slog.LevelDebug || h.debug
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	if *h.quiet {
		return nil
	}
	_, err := io.WriteString(h.w, r.Message+"\n")
	return err
}

func (h *consoleHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(string) slog.Handler      { return h }

// rotation limits of the log file, in megabytes, files and days
type rotation struct {
	maxSize, maxBackups, maxAge int
}

func rotationFromEnv() rotation {
	r := rotation{maxSize: defaultLogMaxSize, maxBackups: 5, maxAge: 30}
	for key, field := range map[string]*int{
		EnvLogMaxSize:    &r.maxSize,
		EnvLogMaxBackups: &r.maxBackups,
		EnvLogMaxAge:     &r.maxAge,
	} {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= 0 {
			*field = v
		}
	}
	if r.maxSize == 0 {
		r.maxSize = defaultLogMaxSize
	}
	return r
}

func openLogFile(path string) *lumberjack.Logger {
	r := rotationFromEnv()
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.maxSize,
		MaxBackups: r.maxBackups,
		MaxAge:     r.maxAge,
	}
}

// fanout hands every record to the console and the file handler
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// Options configures a Splog
type Options struct {
	// Writer receives console output. Defaults to os.Stdout.
	Writer io.Writer
	// Debug enables debug messages on the console. They are also enabled
	// when GATEKEEPER_DEBUG or DEBUG is set.
	Debug bool
	// LogFile, when set, receives every message with timestamps, debug
	// included, through a rotating writer.
	LogFile string
}

// Splog writes human readable progress to the console and, optionally,
// a full log to a rotating file.
type Splog struct {
	logger     *slog.Logger
	fileLogger *slog.Logger
	writer     io.Writer
	logWriter  io.WriteCloser
	quiet      bool
}

// NewSplog creates a console-only Splog
func NewSplog() *Splog {
	splog, _ := NewSplogWithConfig(Options{})
	return splog
}

// NewSplogWithConfig creates a Splog from opts
func NewSplogWithConfig(opts Options) (*Splog, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	debugMode := opts.Debug || os.Getenv(EnvDebug) != "" || os.Getenv("DEBUG") != ""

	splog := &Splog{writer: writer}
	handlers := fanout{&consoleHandler{w: writer, debug: debugMode, quiet: &splog.quiet}}

	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file := openLogFile(opts.LogFile)
		splog.logWriter = file

		fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000"))
				}
				return a
			},
		})
		handlers = append(handlers, fileHandler)
		splog.fileLogger = slog.New(fileHandler)
	}

	splog.logger = slog.New(handlers)
	return splog, nil
}

// Logger returns a structured logger that writes only to the log file, or
// discards everything when no log file is configured.
func (s *Splog) Logger() *slog.Logger {
	if s.fileLogger != nil {
		return s.fileLogger
	}
	return slog.New(slog.DiscardHandler)
}

// Writer returns the console writer
func (s *Splog) Writer() io.Writer {
	return s.writer
}

// SetQuiet suppresses console output while an interactive view owns the
// terminal. The log file still receives everything.
func (s *Splog) SetQuiet(quiet bool) {
	s.quiet = quiet
}

// IsQuiet returns whether console output is suppressed
func (s *Splog) IsQuiet() bool {
	return s.quiet
}

func (s *Splog) log(level slog.Level, prefix, format string, args ...interface{}) {
	msg := prefix + format
	if len(args) > 0 {
		msg = fmt.Sprintf(prefix+format, args...)
	}
	s.logger.Log(context.Background(), level, msg)
}

// Info writes an info message
// nolint // format string validation is handled internally via fmt.Sprintf
func (s *Splog) Info(format string, args ...interface{}) {
	s.log(slog.LevelInfo, "", format, args...)
}

// Success writes an info message marked as a completed action
// nolint // format string validation is handled internally via fmt.Sprintf
func (s *Splog) Success(format string, args ...interface{}) {
	s.log(slog.LevelInfo, "✓ ", format, args...)
}

// Warn writes a warning message
// nolint // format string validation is handled internally via fmt.Sprintf
func (s *Splog) Warn(format string, args ...interface{}) {
	s.log(slog.LevelWarn, "⚠️  ", format, args...)
}

// Error writes an error message
// nolint // format string validation is handled internally via fmt.Sprintf
func (s *Splog) Error(format string, args ...interface{}) {
	s.log(slog.LevelError, "❌ ", format, args...)
}

// Debug writes a debug message
// nolint // format string validation is handled internally via fmt.Sprintf
func (s *Splog) Debug(format string, args ...interface{}) {
	s.log(slog.LevelDebug, "", format, args...)
}

// Tip writes a tip message
// nolint // format string validation is handled internally via fmt.Sprintf
func (s *Splog) Tip(format string, args ...interface{}) {
	s.log(slog.LevelInfo, "💡 ", format, args...)
}

// Newline writes a newline
func (s *Splog) Newline() {
	if !s.quiet {
		_, _ = fmt.Fprintln(s.writer)
	}
}

// Close closes the log file if one was opened
func (s *Splog) Close() error {
	if s.logWriter != nil {
		return s.logWriter.Close()
	}
	return nil
}
