// Package logger provides structured logging for the VESPA results service.
// It wraps log/slog with typed fields, context propagation and helpers for
// the identifiers that appear in results, access and export logs.
package logger

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Level represents the severity of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general operational information.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
	// LevelFatal is for fatal errors that require program termination.
	LevelFatal
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// slogLevel maps l onto slog. Fatal is logged above Error.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelFatal:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// Common field constructors.
func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }

// Err creates an error field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Any creates a field with any value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the main logger struct.
type Logger struct {
	handler slog.Handler
	slog    *slog.Logger
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     Level
	Format    string // "json" or "text"
	AddCaller bool
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     LevelInfo,
		Format:    "json",
		AddCaller: true,
	}
}

// NewHandler builds the slog handler described by opts.
func NewHandler(opts Options) slog.Handler {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	hopts := &slog.HandlerOptions{
		Level:     opts.Level.slogLevel(),
		AddSource: opts.AddCaller,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl > slog.LevelError {
					a.Value = slog.StringValue(LevelFatal.String())
				}
			}
			return a
		},
	}
	if strings.EqualFold(opts.Format, "text") {
		return slog.NewTextHandler(opts.Output, hopts)
	}
	return slog.NewJSONHandler(opts.Output, hopts)
}

// New creates a new Logger with the given options.
func New(opts Options) *Logger {
	return FromHandler(NewHandler(opts))
}

// FromHandler wraps an existing slog handler.
func FromHandler(h slog.Handler) *Logger {
	return &Logger{handler: h, slog: slog.New(h)}
}

// Default creates a logger with default options.
func Default() *Logger {
	return New(DefaultOptions())
}

// Slog exposes the underlying *slog.Logger for libraries that expect one.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns a new Logger with the given fields added.
func (l *Logger) With(fields ...Field) *Logger {
	h := l.handler.WithAttrs(toAttrs(fields))
	return &Logger{handler: h, slog: slog.New(h)}
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	ctx := context.Background()
	lvl := level.slogLevel()
	if !l.handler.Enabled(ctx, lvl) {
		return
	}
	l.slog.LogAttrs(ctx, lvl, msg, toAttrs(fields)...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns a default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// WithRequestID returns a logger with request ID field added.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// HashIdentity returns the hex blake2b-256 digest of a normalized email.
// Logs and cache keys carry this digest, never the address.
func HashIdentity(email string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Results-related logging helpers.
func Viewer(email string) Field      { return String("viewer", HashIdentity(email)[:16]) }
func Establishment(id string) Field  { return String("establishment_id", id) }
func Roles(roles []string) Field     { return Any("roles", roles) }
func StudentCount(n int) Field       { return Int("students", n) }
func RecordCount(n int) Field        { return Int("records", n) }
func Object(key string) Field        { return String("object", key) }
func Page(n int) Field               { return Int("page", n) }
func Component(name string) Field    { return String("component", name) }
func Operation(name string) Field    { return String("operation", name) }
func Latency(d time.Duration) Field  { return Duration("latency", d) }
func Schema(name string) Field       { return String("schema", name) }
func SessionID(id string) Field      { return String("session_id", id) }
func ExportRows(n int) Field         { return Int("export_rows", n) }
func Truncated(truncated bool) Field { return Bool("truncated", truncated) }
func StatusCode(code int) Field      { return Int("status_code", code) }
func Attempt(n int) Field            { return Int("attempt", n) }
func CacheHit(hit bool) Field        { return Bool("cache_hit", hit) }
func Method(m string) Field          { return String("method", m) }
func Path(p string) Field            { return String("path", p) }
func RemoteAddr(addr string) Field   { return String("remote_addr", addr) }
