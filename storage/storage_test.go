package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMemoryRoundTrip(t *testing.T) {
	kv := NewMemory()

	if _, err := kv.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := kv.Put("k", []byte("v1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := kv.Get("k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}

	if err := kv.Put("k", []byte("v2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = kv.Get("k")
	if string(got) != "v2" {
		t.Fatalf("expected overwrite to v2, got %q", got)
	}

	if err := kv.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := kv.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := kv.Delete("k"); err != nil {
		t.Fatalf("delete must be idempotent, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	kv := NewMemory()
	original := []byte("value")
	if err := kv.Put("k", original); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	original[0] = 'X'

	got, err := kv.Get("k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "value" {
		t.Fatalf("stored value aliases caller slice: %q", got)
	}

	got[0] = 'Y'
	again, _ := kv.Get("k")
	if string(again) != "value" {
		t.Fatalf("returned value aliases stored slice: %q", again)
	}
}

func TestMemoryFailReads(t *testing.T) {
	kv := NewMemory()
	_ = kv.Put("k", []byte("v"))
	kv.FailReads = true

	if _, err := kv.Get("k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBoltRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := OpenBolt(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer func() { _ = kv.Close() }()

	if _, err := kv.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := kv.Put("k", []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := kv.Get("k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("expected v, got %q", got)
	}

	if err := kv.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := kv.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	kv, err := OpenBolt(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := kv.Put("token", []byte("abc")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	kv, err = OpenBolt(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = kv.Close() }()

	got, err := kv.Get("token")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("expected persisted value abc, got %q", got)
	}
}
