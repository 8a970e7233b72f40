//go:build integration
// +build integration

package store

import (
	"testing"
	"time"
)

// TestMemcachedStore_Integration runs the shared store checks against a live
// memcached on localhost:11211.
func TestMemcachedStore_Integration(t *testing.T) {
	s, err := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedStore() error = %v", err)
	}
	defer s.Close()

	if err := s.client.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}
	exerciseStore(t, s)
}
