package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if _, ok, err := s.Get(ctx, "sid-1:theme"); err != nil || ok {
		t.Fatalf("Get() on empty store = (ok=%v, err=%v), want miss", ok, err)
	}

	if err := s.Set(ctx, "sid-1:theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "sid-1:theme")
	if err != nil || !ok || got != "dark" {
		t.Fatalf("Get() = (%q, %v, %v), want (dark, true, nil)", got, ok, err)
	}

	if err := s.Set(ctx, "sid-1:theme", "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if got, _, _ := s.Get(ctx, "sid-1:theme"); got != "light" {
		t.Errorf("Get() after overwrite = %q, want light", got)
	}

	if _, ok, _ := s.Get(ctx, "sid-2:theme"); ok {
		t.Error("keys must not leak between sessions")
	}

	if err := s.Delete(ctx, "sid-1:theme"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "sid-1:theme"); ok {
		t.Error("Get() after Delete ok = true, want false")
	}
	if err := s.Delete(ctx, "sid-1:theme"); err != nil {
		t.Errorf("Delete() of missing key error = %v, want nil", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("Set() error = %v, want context.Canceled", err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStore_FilePersists(t *testing.T) {
	path := t.TempDir() + "/nested/cuaca.db"
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.Set(ctx, "sid:favorites", `{"version":1,"favorites":[]}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Get(ctx, "sid:favorites")
	if err != nil || !ok || got != `{"version":1,"favorites":[]}` {
		t.Errorf("Get() after reopen = (%q, %v, %v)", got, ok, err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr(), "", 0, 0)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestRedisStore_PrefixesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr(), "", 0, 0)
	defer s.Close()

	if err := s.Set(context.Background(), "sid:theme", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, err := mr.Get("cuaca:sid:theme"); err != nil || got != "dark" {
		t.Errorf("raw key = (%q, %v), want dark", got, err)
	}
}

func TestRedisStore_PingUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(mr.Addr(), "", 0, 0)
	defer s.Close()
	mr.Close()

	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() error = nil, want error after server stopped")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr error
	}{
		{"default", Options{}, "*store.InMemoryStore", nil},
		{"in_memory", Options{Backend: BackendInMemory}, "*store.InMemoryStore", nil},
		{"memcached", Options{Backend: BackendMemcached, MemcachedAddrs: "localhost:11211"}, "*store.MemcachedStore", nil},
		{"redis", Options{Backend: BackendRedis, RedisAddr: "localhost:6379"}, "*store.RedisStore", nil},
		{"sqlite", Options{Backend: BackendSQLite, SQLitePath: ":memory:"}, "*store.SQLiteStore", nil},
		{"unknown", Options{Backend: "dynamo"}, "", ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer s.Close()
			if got := typeName(s); got != tt.want {
				t.Errorf("New() type = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(s Store) string {
	switch s.(type) {
	case *InMemoryStore:
		return "*store.InMemoryStore"
	case *MemcachedStore:
		return "*store.MemcachedStore"
	case *RedisStore:
		return "*store.RedisStore"
	case *SQLiteStore:
		return "*store.SQLiteStore"
	}
	return "unknown"
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:1 , ,b:2,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("parseAddrs() = %v, want [a:1 b:2]", got)
	}
}
