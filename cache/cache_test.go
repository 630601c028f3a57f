package cache

import (
	"testing"
	"time"
)

func TestInMemorySetGet(t *testing.T) {
	c, err := NewInMemory(100, 1000)
	if err != nil {
		t.Fatalf("new in-memory cache: %v", err)
	}

	c.Set("k", []byte("v"), time.Minute)
	c.cache.Wait()

	v, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected key to be present")
	}
	if string(v) != "v" {
		t.Fatalf("unexpected value: %q", v)
	}
}

func TestInMemoryGetMissing(t *testing.T) {
	c, err := NewInMemory(100, 1000)
	if err != nil {
		t.Fatalf("new in-memory cache: %v", err)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected missing key to report not found")
	}
}
