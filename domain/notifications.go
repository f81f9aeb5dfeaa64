package domain

import (
	"github.com/google/uuid"
	"time"
)

const (
	NotificationMention = "mention"
	NotificationFollow  = "follow"
	NotificationLike    = "like"
	NotificationDirect  = "direct"
)

// Notification is addressed to a recipient actor. PostId and FromActorId
// are optional references; Read is a plain flag, not a timestamp.
type Notification struct {
	Id          uuid.UUID
	ActorId     uuid.UUID
	Kind        string
	PostId      uuid.NullUUID
	FromActorId uuid.NullUUID
	Message     string
	Read        bool
	CreatedAt   time.Time
}
