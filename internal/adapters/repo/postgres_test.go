package repo

import (
	"testing"
	"time"

	"analysis-bot/internal/domain"
)

func TestNormalizeQueueItemClampsSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := normalizeQueueItem(domain.QueueItem{ScheduledAt: now.Add(-time.Hour)}, now)
	if !item.ScheduledAt.Equal(now) {
		t.Fatalf("scheduled time must not precede creation, got %s", item.ScheduledAt)
	}
	if item.Status != domain.QueueStatusPending || item.ContentType != domain.ContentTypeSingle {
		t.Fatalf("unexpected defaults: %+v", item)
	}

	later := now.Add(3 * time.Minute)
	item = normalizeQueueItem(domain.QueueItem{ScheduledAt: later, ContentType: domain.ContentTypeThread}, now)
	if !item.ScheduledAt.Equal(later) || item.ContentType != domain.ContentTypeThread {
		t.Fatalf("future schedule must be kept: %+v", item)
	}
}

func TestDayKeyUsesLocalDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	moment := time.Date(2026, 3, 2, 1, 30, 0, 0, loc)
	got := dayKey(moment)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
