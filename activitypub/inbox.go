package activitypub

import (
	"database/sql"
	"encoding/json"
	"log"

	"github.com/loxodon-dev/loxodon/domain"
)

// Activity is the envelope of an inbound ActivityPub activity. The object
// stays raw until the kind-specific branch decodes it.
type Activity struct {
	Context interface{}     `json:"@context"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	Object  json.RawMessage `json:"object"`
}

// innerActivity is an activity embedded as the object of another one
// (the Follow inside an Undo or Accept).
type innerActivity struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Actor  string          `json:"actor"`
	Object json.RawMessage `json:"object"`
}

// noteObject is the object of a Create.
type noteObject struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Content      string `json:"content"`
	URL          string `json:"url"`
	AttributedTo string `json:"attributedTo"`
	Published    string `json:"published"`
}

// personObject is the object of an Update.
type personObject struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// ProcessActivity applies one inbound activity. The closed set of supported
// kinds is dispatched here so every branch's validation and side effects
// are reviewable in one place. Activities may arrive in any order.
//
// Content-level problems (malformed payloads, spoofed identities, unknown
// kinds) are logged and dropped without an error; only persistence failures
// propagate to the transport.
func (s *Service) ProcessActivity(body []byte) error {
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		log.Printf("Inbox: Failed to parse activity: %v", err)
		return nil
	}
	if activity.Actor == "" {
		log.Printf("Inbox: Dropping activity %s without actor", activity.ID)
		return nil
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, activity.Actor)

	switch activity.Type {
	case "Follow":
		return s.handleFollow(&activity)
	case "Undo":
		return s.handleUndo(&activity)
	case "Accept":
		return s.handleAccept(&activity)
	case "Create":
		return s.handleCreate(&activity)
	case "Update":
		return s.handleUpdate(&activity)
	default:
		log.Printf("Inbox: Unsupported activity type: %s", activity.Type)
		return nil
	}
}

// objectURI decodes an object field that is either a plain URI string or an
// embedded object carrying an id.
func objectURI(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var uri string
	if err := json.Unmarshal(raw, &uri); err == nil {
		return uri
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// handleFollow processes an inbound follow request. Follows are accepted
// automatically; there is no approval step.
func (s *Service) handleFollow(activity *Activity) error {
	targetURI := objectURI(activity.Object)
	if targetURI == "" {
		log.Printf("Inbox: Dropping Follow without object")
		return nil
	}

	err, local := s.DB.ReadActorByURI(targetURI)
	if err != nil || local == nil || !local.Local() {
		log.Printf("Inbox: Dropping Follow for unknown local actor %s", targetURI)
		return nil
	}

	follower, err := s.GetOrFetchActor(activity.Actor)
	if err != nil {
		log.Printf("Inbox: Failed to fetch follower %s: %v", activity.Actor, err)
		return nil
	}

	err, inserted := s.DB.AddFollow(local.Id, follower.Id)
	if err != nil {
		return err
	}

	// A redelivered Follow is a no-op on the edge and must not stack a
	// second notification.
	if inserted {
		if err := s.NotifyFollow(local.Id, follower); err != nil {
			return err
		}
	}

	// Reply with an Accept; a failed delivery is the follower's loss, not
	// ours - the edge is already recorded.
	if err := s.SendAccept(local, follower, activity.ID); err != nil {
		log.Printf("Inbox: Failed to send Accept to %s: %v", follower.InboxURI, err)
	}

	log.Printf("Inbox: Accepted follow from %s for %s", follower.Handle(), local.Username)
	return nil
}

// handleUndo processes Undo(Follow). Undo may race ahead of or duplicate a
// Follow, so removing a missing edge is a silent no-op.
func (s *Service) handleUndo(activity *Activity) error {
	var inner innerActivity
	if err := json.Unmarshal(activity.Object, &inner); err != nil {
		log.Printf("Inbox: Failed to parse Undo object: %v", err)
		return nil
	}
	if inner.Type != "Follow" {
		log.Printf("Inbox: Ignoring Undo of %s", inner.Type)
		return nil
	}
	if inner.Actor != "" && inner.Actor != activity.Actor {
		log.Printf("Inbox: Dropping Undo from %s for a Follow by %s", activity.Actor, inner.Actor)
		return nil
	}

	targetURI := objectURI(inner.Object)
	if targetURI == "" {
		log.Printf("Inbox: Dropping Undo(Follow) without follow object")
		return nil
	}

	err, local := s.DB.ReadActorByURI(targetURI)
	if err != nil || local == nil {
		log.Printf("Inbox: Dropping Undo(Follow) for unknown actor %s", targetURI)
		return nil
	}

	err, follower := s.DB.ReadActorByURI(activity.Actor)
	if err != nil || follower == nil {
		// Never seen the follower, so there is no edge to remove.
		return nil
	}

	if err := s.DB.RemoveFollow(local.Id, follower.Id); err != nil {
		return err
	}

	log.Printf("Inbox: Removed follow of %s by %s", local.Username, follower.Handle())
	return nil
}

// handleAccept confirms an outbound follow of ours was accepted and records
// the edge (local follows remote).
func (s *Service) handleAccept(activity *Activity) error {
	var inner innerActivity
	if err := json.Unmarshal(activity.Object, &inner); err != nil {
		log.Printf("Inbox: Failed to parse Accept object: %v", err)
		return nil
	}
	if inner.Type != "Follow" {
		log.Printf("Inbox: Ignoring Accept of %s", inner.Type)
		return nil
	}

	err, local := s.DB.ReadActorByURI(inner.Actor)
	if err != nil || local == nil || !local.Local() {
		log.Printf("Inbox: Dropping Accept for a Follow not sent by us (%s)", inner.Actor)
		return nil
	}

	remote, err := s.GetOrFetchActor(activity.Actor)
	if err != nil {
		log.Printf("Inbox: Failed to fetch accepting actor %s: %v", activity.Actor, err)
		return nil
	}

	if err, _ := s.DB.AddFollow(remote.Id, local.Id); err != nil {
		return err
	}

	log.Printf("Inbox: Follow of %s by %s was accepted", remote.Handle(), local.Username)
	return nil
}

// handleCreate ingests a remote Note keyed by its own object URI.
func (s *Service) handleCreate(activity *Activity) error {
	var note noteObject
	if err := json.Unmarshal(activity.Object, &note); err != nil {
		log.Printf("Inbox: Failed to parse Create object: %v", err)
		return nil
	}
	if note.ID == "" || note.Content == "" {
		log.Printf("Inbox: Dropping Create without object id or content")
		return nil
	}
	// Anti-spoofing: the author of the note must be the sender.
	if note.AttributedTo != activity.Actor {
		log.Printf("Inbox: Rejecting Create from %s attributed to %s", activity.Actor, note.AttributedTo)
		return nil
	}

	author, err := s.GetOrFetchActor(activity.Actor)
	if err != nil {
		log.Printf("Inbox: Failed to fetch author %s: %v", activity.Actor, err)
		return nil
	}

	post := &domain.Post{
		ActorId: author.Id,
		Content: note.Content,
		URI:     note.ID,
		URL:     note.URL,
	}
	if err := s.DB.CreateFederatedPost(post); err != nil {
		return err
	}

	log.Printf("Inbox: Stored post %s from %s", note.ID, author.Handle())
	return nil
}

// handleUpdate applies a Person profile update. An actor may only update
// itself, and unknown actors are dropped rather than created.
func (s *Service) handleUpdate(activity *Activity) error {
	var person personObject
	if err := json.Unmarshal(activity.Object, &person); err != nil {
		log.Printf("Inbox: Failed to parse Update object: %v", err)
		return nil
	}
	if person.Type != "Person" {
		log.Printf("Inbox: Ignoring Update of %s", person.Type)
		return nil
	}
	if person.ID != activity.Actor {
		log.Printf("Inbox: Rejecting Update of %s by %s", person.ID, activity.Actor)
		return nil
	}

	err, existing := s.DB.ReadActorByURI(person.ID)
	if err == sql.ErrNoRows || existing == nil {
		log.Printf("Inbox: Dropping Update for unknown actor %s", person.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.DB.UpdateActorDisplayName(person.ID, person.Name); err != nil {
		return err
	}

	log.Printf("Inbox: Updated profile of %s", existing.Handle())
	return nil
}
