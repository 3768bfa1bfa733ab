// Package guard decides whether a requester may act on a resource.
package guard

import "github.com/erazemk/marketbook/internal/model"

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Resource is the part of a target that authorization looks at. SelfOnly
// resources (a profile, a notification) are never opened up by the admin role.
type Resource struct {
	OwnerID  int64
	SelfOnly bool
}

// Owned returns a resource belonging to ownerID.
func Owned(ownerID int64) Resource {
	return Resource{OwnerID: ownerID}
}

// Self returns a resource only ownerID may mutate.
func Self(ownerID int64) Resource {
	return Resource{OwnerID: ownerID, SelfOnly: true}
}

// Decide applies the rules in order: admins are allowed, then owners, and
// everyone else is denied. A nil requester is always denied.
func Decide(requester *model.User, res Resource) Decision {
	if requester == nil {
		return Deny
	}
	if requester.IsAdmin() && !res.SelfOnly {
		return Allow
	}
	if res.OwnerID != 0 && res.OwnerID == requester.ID {
		return Allow
	}
	return Deny
}
