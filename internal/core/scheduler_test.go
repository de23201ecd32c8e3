package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/bomtool/internal/store"
)

func TestPruneRuns(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := &fakeRunStore{saved: []*store.Run{
		{FileName: "old.csv", CreatedAt: now.Add(-48 * time.Hour)},
		{FileName: "new.csv", CreatedAt: now.Add(-time.Hour)},
	}}
	svc := NewService(Config{}, runs)

	if got := svc.pruneRuns(context.Background(), 24*time.Hour, now); got != 1 {
		t.Errorf("pruneRuns() = %d, want 1", got)
	}
	if len(runs.saved) != 1 || runs.saved[0].FileName != "new.csv" {
		t.Errorf("remaining runs = %+v", runs.saved)
	}
	if want := now.Add(-24 * time.Hour); !runs.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", runs.cutoffs[0], want)
	}
}

func TestPruneRuns_Error(t *testing.T) {
	svc := NewService(Config{}, &fakeRunStore{deleteErr: errors.New("connection refused")})

	if got := svc.pruneRuns(context.Background(), time.Hour, time.Now()); got != 0 {
		t.Errorf("pruneRuns() = %d, want 0 on error", got)
	}
}

func TestStartRetention(t *testing.T) {
	runs := &fakeRunStore{}
	svc := NewService(Config{}, runs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartRetention(ctx, RetentionConfig{MaxAge: time.Hour, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		runs.mu.Lock()
		passes := len(runs.cutoffs)
		runs.mu.Unlock()
		if passes >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d retention passes ran", passes)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartRetention did not stop after cancel")
	}
}

func TestStartRetention_Disabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewService(Config{}, nil).StartRetention(context.Background(), RetentionConfig{MaxAge: time.Hour})
		NewService(Config{}, &fakeRunStore{}).StartRetention(context.Background(), RetentionConfig{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartRetention should return immediately when disabled")
	}
}
