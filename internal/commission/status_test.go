package commission

import (
	"testing"
	"time"

	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

func TestResolveStatus(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	grace := 48

	ts := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name    string
		expires *time.Time
		want    enums.SubscriptionStatus
	}{
		{"no expiry", nil, enums.SubscriptionStatusInactive},
		{"future expiry", ts(24 * time.Hour), enums.SubscriptionStatusActive},
		{"expires exactly now", ts(0), enums.SubscriptionStatusActive},
		{"one second into grace", ts(-time.Second), enums.SubscriptionStatusGracePeriod},
		{"grace boundary inclusive", ts(-48 * time.Hour), enums.SubscriptionStatusGracePeriod},
		{"one second past grace", ts(-48*time.Hour - time.Second), enums.SubscriptionStatusInactive},
		{"long expired", ts(-30 * 24 * time.Hour), enums.SubscriptionStatusInactive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveStatus(tc.expires, grace, now); got != tc.want {
				t.Fatalf("ResolveStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestResolveStatusZeroGraceWindow(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Second)

	if got := ResolveStatus(&expired, 0, now); got != enums.SubscriptionStatusInactive {
		t.Fatalf("zero grace window should go straight to inactive, got %s", got)
	}
}
