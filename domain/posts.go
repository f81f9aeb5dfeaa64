package domain

import (
	"github.com/google/uuid"
	"time"
)

// Post is a note authored by an actor. Local posts get their URI backfilled
// inside the insert transaction; federated posts keep the remote object URI.
type Post struct {
	Id        uuid.UUID
	ActorId   uuid.UUID
	Content   string
	URI       string
	URL       string
	CreatedAt time.Time
}

// Mention links a post to a mentioned actor, unique per (post, actor).
type Mention struct {
	Id      uuid.UUID
	PostId  uuid.UUID
	ActorId uuid.UUID
}
