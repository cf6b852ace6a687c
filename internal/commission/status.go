package commission

import (
	"time"

	"github.com/gembotlabs/gembot-backend/pkg/enums"
)

// ResolveStatus computes a member's real-time subscription status from its
// expiry timestamp and the configured grace window. The stored is_active flag
// is only a cache of last-activation intent; this function is authoritative
// for payment routing.
//
// Boundaries are inclusive: now == expires is still active, and
// now == expires + grace is still grace_period.
func ResolveStatus(expires *time.Time, gracePeriodHours int, now time.Time) enums.SubscriptionStatus {
	if expires == nil {
		return enums.SubscriptionStatusInactive
	}
	if !now.After(*expires) {
		return enums.SubscriptionStatusActive
	}
	graceEnd := expires.Add(time.Duration(gracePeriodHours) * time.Hour)
	if !now.After(graceEnd) {
		return enums.SubscriptionStatusGracePeriod
	}
	return enums.SubscriptionStatusInactive
}
