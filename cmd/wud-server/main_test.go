package main

import (
	"bytes"
	"testing"
)

func TestResolveStageSecret_FromEnv(t *testing.T) {
	secret, random, err := resolveStageSecret("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if random {
		t.Error("expected random=false when env var is set")
	}
	if !bytes.Equal(secret, []byte("correct-horse-battery-staple")) {
		t.Errorf("secret mismatch: got %q", secret)
	}
}

func TestResolveStageSecret_RandomGeneration(t *testing.T) {
	secret, random, err := resolveStageSecret("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !random {
		t.Error("expected random=true when env var is empty")
	}
	// 32 random bytes, hex-encoded.
	if len(secret) != 64 {
		t.Errorf("expected 64-byte secret, got %d bytes", len(secret))
	}

	secret2, _, err := resolveStageSecret("")
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if bytes.Equal(secret, secret2) {
		t.Error("two random secrets should not be identical")
	}
}
