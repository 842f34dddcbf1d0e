package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field      { return Field{key, value} }
func Int(key string, value int) Field     { return Field{key, value} }
func Int64(key string, value int64) Field { return Field{key, value} }
func Err(err error) Field                 { return Field{"err", err} }
func Any(key string, value interface{}) Field {
	return Field{key, value}
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Console writes "[level] msg key=value ..." lines. Safe for concurrent use.
type Console struct {
	w      io.Writer
	min    Level
	mu     *sync.Mutex
	fields []Field
}

func New(w io.Writer, min Level) *Console {
	return &Console{w: w, min: min, mu: &sync.Mutex{}}
}

func (c *Console) Debug(msg string, fields ...Field) { c.write(LevelDebug, msg, fields) }
func (c *Console) Info(msg string, fields ...Field)  { c.write(LevelInfo, msg, fields) }
func (c *Console) Warn(msg string, fields ...Field)  { c.write(LevelWarn, msg, fields) }
func (c *Console) Error(msg string, fields ...Field) { c.write(LevelError, msg, fields) }

func (c *Console) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &Console{w: c.w, min: c.min, mu: c.mu, fields: merged}
}

func (c *Console) write(level Level, msg string, fields []Field) {
	if c.w == nil || level < c.min {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for _, f := range c.fields {
		writeField(&b, f)
	}
	for _, f := range fields {
		writeField(&b, f)
	}
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, b.String())
}

func writeField(b *strings.Builder, f Field) {
	v := fmt.Sprint(f.Value)
	if strings.ContainsAny(v, " \t\n\"") {
		v = fmt.Sprintf("%q", v)
	}
	fmt.Fprintf(b, " %s=%s", f.Key, v)
}

type Nop struct{}

func (Nop) Debug(string, ...Field) {}
func (Nop) Info(string, ...Field)  {}
func (Nop) Warn(string, ...Field)  {}
func (Nop) Error(string, ...Field) {}
func (Nop) With(...Field) Logger   { return Nop{} }
