// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesBudget(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	l := New(map[string]Budget{
		"ticketing": {MaxRequests: 3, Window: time.Minute},
	}, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		if !l.Allow("ticketing") {
			t.Fatalf("request %d should fit the budget", i+1)
		}
	}
	if l.Allow("ticketing") {
		t.Error("fourth request should be denied")
	}
	if got := l.Remaining("ticketing"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestAllowWindowReset(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	l := New(map[string]Budget{
		"ticketing": {MaxRequests: 1, Window: time.Minute},
	}, WithClock(func() time.Time { return now }))

	if !l.Allow("ticketing") {
		t.Fatal("first request should pass")
	}
	if l.Allow("ticketing") {
		t.Fatal("budget should be exhausted")
	}

	// 59s in: same window, still denied.
	now = now.Add(59 * time.Second)
	if l.Allow("ticketing") {
		t.Error("request inside the window should stay denied")
	}

	// Window boundary passed: full budget again.
	now = now.Add(2 * time.Second)
	if !l.Allow("ticketing") {
		t.Error("request after window reset should pass")
	}
}

func TestAllowUnknownSourceUnlimited(t *testing.T) {
	l := New(map[string]Budget{})
	for i := 0; i < 100; i++ {
		if !l.Allow("unbudgeted") {
			t.Fatal("sources without a budget must always be allowed")
		}
	}
	if got := l.Remaining("unbudgeted"); got != -1 {
		t.Errorf("Remaining for unbudgeted source = %d, want -1", got)
	}
}

func TestWaitGivesUpAfterBoundedAttempts(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	l := New(map[string]Budget{
		"setlists": {MaxRequests: 1, Window: time.Hour},
	},
		WithClock(func() time.Time { return now }),
		WithWaitPolicy(time.Millisecond, 3))

	if err := l.Wait(context.Background(), "setlists"); err != nil {
		t.Fatalf("first Wait should pass immediately: %v", err)
	}
	if err := l.Wait(context.Background(), "setlists"); err == nil {
		t.Error("Wait on an exhausted hour-long budget must give up with an error")
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	l := New(map[string]Budget{
		"setlists": {MaxRequests: 1, Window: time.Hour},
	}, WithWaitPolicy(10*time.Second, 5))
	l.Allow("setlists")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := l.Wait(ctx, "setlists")
	if err == nil {
		t.Fatal("Wait should return the context error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Wait blocked %v after cancellation", elapsed)
	}
}

func TestJitterExtendsWindowOnly(t *testing.T) {
	l := New(nil, WithJitter())
	base := time.Minute
	for i := 0; i < 50; i++ {
		got := l.windowLength(base)
		if got < base || got > base+base/10 {
			t.Fatalf("jittered window %v outside [%v, %v]", got, base, base+base/10)
		}
	}
}
