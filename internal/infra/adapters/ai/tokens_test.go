//go:build !integration

package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

func TestTiktokenCounter_DoesNotBlockOnLoad(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := NewTokenCounter("", nil)
	c.loadEnc = func(string) (*tiktoken.Tiktoken, error) {
		<-release // an offline download that never finishes
		return nil, errors.New("offline")
	}

	done := make(chan int, 1)
	go func() { done <- c.Count("four score and seven") }()
	select {
	case n := <-done:
		if n != ApproxTokens("four score and seven") {
			t.Fatalf("expected the estimate, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Count blocked on the encoding download")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Warm(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Warm to give up, got %v", err)
	}
}

func TestTiktokenCounter_LoadFailureFallsBack(t *testing.T) {
	c := NewTokenCounter("", nil)
	c.loadEnc = func(string) (*tiktoken.Tiktoken, error) { return nil, errors.New("no network") }

	if err := c.Warm(context.Background()); err == nil {
		t.Fatal("expected the load error")
	}
	if got, want := c.Count("hello world"), ApproxTokens("hello world"); got != want {
		t.Fatalf("Count = %d, want %d", got, want)
	}
}
