package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// Actor represents a federated identity, local or remote. There is exactly
// one row per URI; local actors additionally carry the id of their account.
type Actor struct {
	Id             uuid.UUID
	URI            string
	Username       string
	Domain         string
	DisplayName    string
	InboxURI       string
	SharedInboxURI string
	ProfileURL     string
	PublicKeyPem   string
	AccountId      uuid.NullUUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Handle returns the @-less username@domain form of the actor.
func (a *Actor) Handle() string {
	return fmt.Sprintf("%s@%s", a.Username, a.Domain)
}

// Local reports whether the actor belongs to an account on this server.
func (a *Actor) Local() bool {
	return a.AccountId.Valid
}

// Name returns the display name, falling back to the handle.
func (a *Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return "@" + a.Handle()
}

// Follow represents a directed, accepted follow edge between two actors:
// FollowerId follows FollowingId. The (following, follower) pair is unique.
type Follow struct {
	Id          uuid.UUID
	FollowingId uuid.UUID
	FollowerId  uuid.UUID
	CreatedAt   time.Time
}
