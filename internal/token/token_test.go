package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := NewCodec("test-secret", time.Hour)

	raw, err := c.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	uid, err := c.Verify(raw)
	if err != nil || uid != 42 {
		t.Fatalf("verify: uid=%d err=%v", uid, err)
	}
}

func TestVerify_Rejections(t *testing.T) {
	c := NewCodec("test-secret", time.Hour)
	raw, err := c.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewCodec("another-secret", time.Hour)
		if _, err := other.Verify(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("want ErrInvalid, got %v", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		if len(parts) != 3 {
			t.Fatalf("unexpected token shape: %q", raw)
		}
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]
		if _, err := c.Verify(tampered); !errors.Is(err, ErrInvalid) {
			t.Fatalf("want ErrInvalid, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := c.Verify("not-a-token"); !errors.Is(err, ErrInvalid) {
			t.Fatalf("want ErrInvalid, got %v", err)
		}
	})

	t.Run("zero user id", func(t *testing.T) {
		zero, err := c.Issue(0)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := c.Verify(zero); !errors.Is(err, ErrInvalid) {
			t.Fatalf("want ErrInvalid, got %v", err)
		}
	})
}

func TestVerify_Expired(t *testing.T) {
	c := NewCodec("test-secret", time.Millisecond)
	raw, err := c.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := c.Verify(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestNewCodec_TTLFallback(t *testing.T) {
	c := NewCodec("test-secret", 0)
	if c.ttl != DefaultTTL {
		t.Fatalf("ttl fallback: %v", c.ttl)
	}
}
