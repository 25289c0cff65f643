// Package entitlement is the derived read-only view of a user's paid access.
// It owns no rows; subscription fields on the user row are written only by the
// payment webhook and gift code redemption paths.
package entitlement

import (
	"time"

	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
)

// IsActive reports whether the user holds a live entitlement at now.
func IsActive(u *userdomain.User, now time.Time) bool {
	if u == nil || u.SubscriptionStatus != userdomain.SubscriptionActive {
		return false
	}
	return u.SubscriptionEndsAt != nil && u.SubscriptionEndsAt.After(now)
}

// EndsAt returns the entitlement expiry, nil when none was ever granted.
func EndsAt(u *userdomain.User) *time.Time {
	if u == nil {
		return nil
	}
	return u.SubscriptionEndsAt
}

// ExtendByMonths computes the new expiry when granting months of access.
// An active entitlement extends from its current expiry; a missing or lapsed
// one activates fresh from now.
func ExtendByMonths(current *time.Time, now time.Time, months int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, months, 0)
}
