package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	policy        *Policy
}

// Policy decides how sensitive key/value pairs are written. Keys are matched
// case-insensitively by substring.
type Policy struct {
	Redact []string
	Hash   []string
	Salt   string
}

// DefaultPolicy hides credentials and pseudonymises contributor identities.
func DefaultPolicy() *Policy {
	return &Policy{
		Redact: []string{"password", "secret", "token", "authorization", "api_key", "apikey", "dsn", "otlp_headers"},
		Hash:   []string{"user_id", "username", "email", "remote_addr"},
	}
}

// New builds a zap logger: "prod" or "production" gives JSON output, anything
// else the development console. LOG_LEVEL sets the level, LOG_REDACTION_ENABLED
// and LOG_HASH_SALT tune the policy.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(os.Getenv("LOG_LEVEL")))
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewWithPolicy(z, policyFromEnv()), nil
}

// NewWithPolicy wraps z. A nil policy writes every value as is.
func NewWithPolicy(z *zap.Logger, p *Policy) *Logger {
	return &Logger{SugaredLogger: z.Sugar(), policy: p}
}

func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func policyFromEnv() *Policy {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		return nil
	}
	p := DefaultPolicy()
	p.Salt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	return p
}

func parseLevel(raw string) zapcore.Level {
	lvl := zapcore.DebugLevel
	if raw = strings.TrimSpace(raw); raw != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			return zapcore.DebugLevel
		}
	}
	return lvl
}

func (l *Logger) Sync() {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.SugaredLogger.Debugw(msg, l.policy.apply(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.SugaredLogger.Infow(msg, l.policy.apply(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.SugaredLogger.Warnw(msg, l.policy.apply(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.SugaredLogger.Errorw(msg, l.policy.apply(kv)...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.SugaredLogger.Fatalw(msg, l.policy.apply(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.policy.apply(kv)...), policy: l.policy}
}

// apply rewrites the values of sensitive keys. A trailing key without value
// is kept.
func (p *Policy) apply(kv []interface{}) []interface{} {
	if p == nil || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		out[i+1] = p.value(keyOf(out[i]), out[i+1])
	}
	return out
}

func (p *Policy) value(key string, v interface{}) interface{} {
	if key == "" {
		return v
	}
	if matchAny(key, p.Redact) {
		return "[REDACTED]"
	}
	if matchAny(key, p.Hash) {
		return p.hash(v)
	}
	if m, ok := v.(map[string]interface{}); ok {
		clean := make(map[string]interface{}, len(m))
		for k, inner := range m {
			clean[k] = p.value(keyOf(k), inner)
		}
		return clean
	}
	if m, ok := v.(map[string]string); ok {
		clean := make(map[string]interface{}, len(m))
		for k, inner := range m {
			clean[k] = p.value(keyOf(k), inner)
		}
		return clean
	}
	return v
}

func (p *Policy) hash(v interface{}) string {
	raw := stringify(v)
	if raw == "" || raw == "0" {
		return raw
	}
	sum := sha256.Sum256([]byte(p.Salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func matchAny(key string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

func keyOf(v interface{}) string {
	return strings.ToLower(strings.TrimSpace(stringify(v)))
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
