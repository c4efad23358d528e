package retry

import (
	"testing"
	"time"
)

func TestDefaultPolicyLadder(t *testing.T) {
	policy := DefaultPolicy(Overrides{})
	want := []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute, 10 * time.Minute}
	if policy.MaxRetries != len(want) {
		t.Errorf("expected MaxRetries %d, got %d", len(want), policy.MaxRetries)
	}
	for i, delay := range want {
		got, ok := NextDelay(i, policy)
		if !ok {
			t.Fatalf("expected delay at count %d", i)
		}
		if got != delay {
			t.Errorf("count %d: expected %v, got %v", i, delay, got)
		}
	}
	if policy.DeadLetterTopic != TopicDeadLetter {
		t.Errorf("expected default dead-letter topic, got %q", policy.DeadLetterTopic)
	}
}

func TestEmptyLadderStillAgreesOnExhaustion(t *testing.T) {
	policy := Policy{MaxRetries: 3, Backoff: nil, DeadLetterTopic: TopicDeadLetter}
	for count := 0; count < policy.MaxRetries; count++ {
		delay, ok := NextDelay(count, policy)
		if !ok {
			t.Fatalf("expected retry at count %d with an empty ladder", count)
		}
		if delay != 0 {
			t.Errorf("expected immediate redelivery at count %d, got %v", count, delay)
		}
		if ShouldDeadLetter(count, policy) {
			t.Fatalf("ShouldDeadLetter true at %d while NextDelay still retries", count)
		}
	}
	if _, ok := NextDelay(policy.MaxRetries, policy); ok {
		t.Error("expected exhaustion at MaxRetries")
	}
	if !ShouldDeadLetter(policy.MaxRetries, policy) {
		t.Error("expected dead-letter verdict at MaxRetries")
	}
}

func TestNextDelayMonotonicUntilDeadLetter(t *testing.T) {
	policy := DefaultPolicy(Overrides{})
	var prev time.Duration
	for count := 0; ; count++ {
		delay, ok := NextDelay(count, policy)
		if !ok {
			if !ShouldDeadLetter(count, policy) {
				t.Fatalf("NextDelay exhausted at %d but ShouldDeadLetter disagrees", count)
			}
			if count != policy.MaxRetries {
				t.Fatalf("expected exhaustion exactly at MaxRetries=%d, got %d", policy.MaxRetries, count)
			}
			return
		}
		if ShouldDeadLetter(count, policy) {
			t.Fatalf("ShouldDeadLetter true at %d while NextDelay still returns %v", count, delay)
		}
		if delay < prev {
			t.Fatalf("delay decreased at count %d: %v < %v", count, delay, prev)
		}
		prev = delay
	}
}

func TestMaxRetriesBeyondLadderClampsAtTail(t *testing.T) {
	policy := DefaultPolicy(Overrides{MaxRetries: 8})
	tail := policy.Backoff[len(policy.Backoff)-1]
	for count := len(policy.Backoff); count < 8; count++ {
		delay, ok := NextDelay(count, policy)
		if !ok {
			t.Fatalf("expected clamped delay at count %d", count)
		}
		if delay != tail {
			t.Errorf("count %d: expected tail %v, got %v", count, tail, delay)
		}
	}
	if _, ok := NextDelay(8, policy); ok {
		t.Error("expected dead-letter at MaxRetries")
	}
	if !ShouldDeadLetter(8, policy) {
		t.Error("ShouldDeadLetter must agree at the threshold")
	}
}

func TestOverrideBackoffResetsMaxRetries(t *testing.T) {
	policy := DefaultPolicy(Overrides{Backoff: []time.Duration{time.Second, time.Minute}})
	if policy.MaxRetries != 2 {
		t.Errorf("expected MaxRetries to follow custom ladder, got %d", policy.MaxRetries)
	}
	if ShouldDeadLetter(1, policy) {
		t.Error("count 1 should still retry")
	}
	if !ShouldDeadLetter(2, policy) {
		t.Error("count 2 should dead-letter")
	}
}

func TestNegativeRetryCountTreatedAsZero(t *testing.T) {
	policy := DefaultPolicy(Overrides{})
	delay, ok := NextDelay(-3, policy)
	if !ok || delay != time.Second {
		t.Errorf("expected first-rung delay for negative count, got %v ok=%v", delay, ok)
	}
	if ShouldDeadLetter(-1, policy) {
		t.Error("negative count must not dead-letter")
	}
}
