package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPolicyRedactsAndHashes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithPolicy(zap.New(core), &Policy{
		Redact: DefaultPolicy().Redact,
		Hash:   DefaultPolicy().Hash,
		Salt:   "pepper",
	})

	log.With("db_dsn", "postgres://u:p@db/cordee").Info("Delete completed",
		"document_id", 42,
		"user_id", 7,
		"headers", map[string]string{"Authorization": "Bearer x", "Accept": "json"},
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["db_dsn"] != "[REDACTED]" {
		t.Fatalf("dsn: got=%v", fields["db_dsn"])
	}
	if fields["document_id"] != int64(42) {
		t.Fatalf("document_id should pass through, got=%v", fields["document_id"])
	}
	uid, _ := fields["user_id"].(string)
	if !strings.HasPrefix(uid, "hash:") || len(uid) != len("hash:")+12 {
		t.Fatalf("user_id: got=%v", fields["user_id"])
	}
	headers, _ := fields["headers"].(map[string]interface{})
	if headers["Authorization"] != "[REDACTED]" || headers["Accept"] != "json" {
		t.Fatalf("headers: got=%v", fields["headers"])
	}
}

func TestPolicyHashDependsOnSalt(t *testing.T) {
	a := (&Policy{Salt: "a"}).hash(7)
	b := (&Policy{Salt: "b"}).hash(7)
	if a == b {
		t.Fatalf("salted hashes should differ: %s", a)
	}
	if got := (&Policy{}).hash(0); got != "0" {
		t.Fatalf("anonymous user id should stay 0, got=%s", got)
	}
}

func TestNilPolicyKeepsValues(t *testing.T) {
	var p *Policy
	kv := []interface{}{"password", "hunter2", "dangling"}
	if got := p.apply(kv); got[1] != "hunter2" || len(got) != 3 {
		t.Fatalf("nil policy changed value: %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{"": zapcore.DebugLevel, "WARN": zapcore.WarnLevel, "bogus": zapcore.DebugLevel, " info ": zapcore.InfoLevel}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q): want=%v got=%v", raw, want, got)
		}
	}
}
