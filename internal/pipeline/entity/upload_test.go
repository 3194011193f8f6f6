package entity

import (
	"testing"
	"time"
)

func TestTaskExpired(t *testing.T) {
	now := time.Unix(1_000, 0)

	if (Task{}).Expired(now) {
		t.Fatal("task without deadline must never expire")
	}
	if !(Task{ExpiresAt: now}).Expired(now) {
		t.Fatal("task must be expired at its deadline")
	}
	if (Task{ExpiresAt: now.Add(time.Second)}).Expired(now) {
		t.Fatal("task must not be expired before its deadline")
	}
}

func TestModeValid(t *testing.T) {
	if !ModeDeferred.Valid() || !ModeSync.Valid() {
		t.Fatal("known modes must be valid")
	}
	if Mode("batch").Valid() {
		t.Fatal("unknown mode must be invalid")
	}
}
