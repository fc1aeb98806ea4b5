package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR"}

var levelColors = [...]string{
	DEBUG: "\033[36m",
	INFO:  "\033[32m",
	WARN:  "\033[33m",
	ERROR: "\033[31m",
}

const colorReset = "\033[0m"

func (l Level) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps LOG_LEVEL values onto a Level, falling back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format selects how a line is rendered.
type Format int

const (
	// Text is the human-readable "ts LEVEL [prefix] [file:line] msg k=v" layout.
	Text Format = iota
	// JSON writes one object per line for log shippers.
	JSON
)

// ParseFormat maps LOG_FORMAT values onto a Format, falling back to Text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return JSON
	}
	return Text
}

// Logger is a leveled logger carrying a prefix and a set of fields.
// Loggers derived with WithField, WithFields, WithError or WithPrefix share
// the parent's writer and lock.
type Logger struct {
	mu       *sync.Mutex
	out      io.Writer
	level    Level
	format   Format
	prefix   string
	fields   map[string]any
	colorize bool
	now      func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

func WithLevel(level Level) Option {
	return func(l *Logger) { l.level = level }
}

func WithPrefix(prefix string) Option {
	return func(l *Logger) { l.prefix = prefix }
}

// WithColors toggles ANSI level colors. Ignored for JSON output.
func WithColors(enabled bool) Option {
	return func(l *Logger) { l.colorize = enabled }
}

func WithFormat(f Format) Option {
	return func(l *Logger) { l.format = f }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func New(opts ...Option) *Logger {
	l := &Logger{
		mu:       &sync.Mutex{},
		out:      os.Stdout,
		level:    INFO,
		colorize: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var defaultLogger = New()

func SetDefault(l *Logger) {
	defaultLogger = l
}

func Default() *Logger {
	return defaultLogger
}

// clone copies l with room for extra more fields.
func (l *Logger) clone(extra int) *Logger {
	c := *l
	c.fields = make(map[string]any, len(l.fields)+extra)
	for k, v := range l.fields {
		c.fields[k] = v
	}
	return &c
}

func (l *Logger) WithField(key string, value any) *Logger {
	c := l.clone(1)
	c.fields[key] = value
	return c
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	c := l.clone(len(fields))
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// WithError attaches err under the "error" field. A nil err returns l unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) WithPrefix(prefix string) *Logger {
	c := l.clone(0)
	c.prefix = prefix
	return c
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) Debug(msg string, args ...any) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(ERROR, msg, args...) }

type entry struct {
	time   time.Time
	level  Level
	prefix string
	caller string
	msg    string
	keys   []string
	fields map[string]any
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	e := entry{
		time:   l.now(),
		level:  level,
		prefix: l.prefix,
		caller: caller(3),
		msg:    msg,
		fields: l.fields,
	}
	e.keys = make([]string, 0, len(l.fields))
	for k := range l.fields {
		e.keys = append(e.keys, k)
	}
	sort.Strings(e.keys)

	var line []byte
	if l.format == JSON {
		line = e.json()
	} else {
		line = e.text(l.colorize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

// caller returns "file.go:line" for the frame skip levels above it.
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(line)
}

func (e entry) text(colorize bool) []byte {
	var sb strings.Builder
	sb.WriteString(e.time.Format("2006-01-02 15:04:05.000"))
	sb.WriteByte(' ')
	if colorize {
		sb.WriteString(levelColors[e.level])
		fmt.Fprintf(&sb, "%-5s", e.level)
		sb.WriteString(colorReset)
	} else {
		fmt.Fprintf(&sb, "%-5s", e.level)
	}
	sb.WriteByte(' ')
	if e.prefix != "" {
		sb.WriteString("[" + e.prefix + "] ")
	}
	if e.caller != "" {
		sb.WriteString("[" + e.caller + "] ")
	}
	sb.WriteString(e.msg)
	for _, k := range e.keys {
		sb.WriteString(" " + k + "=" + quoteIfNeeded(fmt.Sprint(e.fields[k])))
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// json renders the entry as a single object. Reserved keys win over fields
// of the same name.
func (e entry) json() []byte {
	obj := make(map[string]any, len(e.fields)+5)
	for _, k := range e.keys {
		obj[k] = jsonValue(e.fields[k])
	}
	obj["ts"] = e.time.UTC().Format(time.RFC3339Nano)
	obj["level"] = e.level.String()
	obj["msg"] = e.msg
	if e.prefix != "" {
		obj["component"] = e.prefix
	}
	if e.caller != "" {
		obj["caller"] = e.caller
	}

	b, err := json.Marshal(obj)
	if err != nil {
		b, _ = json.Marshal(map[string]string{
			"ts":    e.time.UTC().Format(time.RFC3339Nano),
			"level": e.level.String(),
			"msg":   e.msg,
			"error": "unencodable fields: " + err.Error(),
		})
	}
	return append(b, '\n')
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}

type ctxKey struct{}

// FromContext returns the request-scoped logger, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return defaultLogger
}

func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
