package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/loxodon-dev/loxodon/domain"
	"github.com/loxodon-dev/loxodon/util"
)

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"
const publicAudience = "https://www.w3.org/ns/activitystreams#Public"

// SendAccept replies to an inbound Follow with an Accept addressed back to
// the requester.
func (s *Service) SendAccept(local *domain.Actor, remote *domain.Actor, followID string) error {
	if !local.AccountId.Valid {
		return fmt.Errorf("actor %s has no local account", local.URI)
	}
	err, acc := s.DB.ReadAccById(local.AccountId.UUID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	accept := map[string]interface{}{
		"@context": activityStreamsContext,
		"id":       s.activityURI(),
		"type":     "Accept",
		"actor":    local.URI,
		"object": map[string]interface{}{
			"id":     followID,
			"type":   "Follow",
			"actor":  remote.URI,
			"object": local.URI,
		},
	}

	return s.Deliver(acc, remote.URI, accept)
}

// CreateNote records a local post and federates it: mentions are resolved
// and notified, then the Create activity goes to the author's followers and
// directly to mentioned actors who are not followers. Delivery starts only
// after the post is durably committed and never fails the post itself.
func (s *Service) CreateNote(acc *domain.Account, content string) (*domain.Post, error) {
	actor, err := s.EnsureLocalActor(acc)
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		ActorId: actor.Id,
		Content: util.NormalizeInput(content),
	}
	if err := s.DB.CreateLocalPost(post, s.NoteURI); err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}

	mentioned := s.ResolveMentions(ParseMentions(content))
	if err := s.NotifyMentions(post.Id, actor, mentioned); err != nil {
		return nil, err
	}

	create := s.buildCreate(actor, post, mentioned)
	if err := s.Deliver(acc, RecipientFollowers, create); err != nil {
		log.Printf("Outbox: Failed to fan out post %s: %v", post.Id, err)
	}
	s.DeliverToMentioned(acc, actor, mentioned, create)

	return post, nil
}

// buildCreate wraps a post into a Create activity with Mention tags.
func (s *Service) buildCreate(actor *domain.Actor, post *domain.Post, mentioned []domain.Actor) map[string]interface{} {
	followersURI := fmt.Sprintf("%s/followers", actor.URI)

	tags := make([]map[string]interface{}, 0, len(mentioned))
	cc := []string{followersURI}
	for _, m := range mentioned {
		tags = append(tags, map[string]interface{}{
			"type": "Mention",
			"href": m.URI,
			"name": "@" + m.Handle(),
		})
		cc = append(cc, m.URI)
	}

	published := post.CreatedAt.Format(time.RFC3339)

	return map[string]interface{}{
		"@context":  activityStreamsContext,
		"id":        s.activityURI(),
		"type":      "Create",
		"actor":     actor.URI,
		"published": published,
		"to":        []string{publicAudience},
		"cc":        cc,
		"object": map[string]interface{}{
			"id":           post.URI,
			"type":         "Note",
			"attributedTo": actor.URI,
			"content":      post.Content,
			"published":    published,
			"to":           []string{publicAudience},
			"cc":           cc,
			"tag":          tags,
		},
	}
}

// SendFollow asks a remote actor to be followed by a local account. The
// edge is recorded once the remote side replies with an Accept.
func (s *Service) SendFollow(acc *domain.Account, remoteActorURI string) error {
	local, err := s.EnsureLocalActor(acc)
	if err != nil {
		return err
	}

	remote, err := s.GetOrFetchActor(remoteActorURI)
	if err != nil {
		return fmt.Errorf("failed to fetch remote actor: %w", err)
	}

	follow := map[string]interface{}{
		"@context": activityStreamsContext,
		"id":       s.activityURI(),
		"type":     "Follow",
		"actor":    local.URI,
		"object":   remote.URI,
	}

	return s.Deliver(acc, remote.URI, follow)
}

// Unfollow removes the local edge immediately and tells the remote side
// with an Undo(Follow). The local removal is authoritative; a lost Undo
// only leaves the remote with a stale follower entry.
func (s *Service) Unfollow(acc *domain.Account, remoteActorURI string) error {
	local, err := s.EnsureLocalActor(acc)
	if err != nil {
		return err
	}

	err2, remote := s.DB.ReadActorByURI(remoteActorURI)
	if err2 != nil || remote == nil {
		// Nothing followed, nothing to undo.
		return nil
	}

	if err := s.DB.RemoveFollow(remote.Id, local.Id); err != nil {
		return err
	}

	undo := map[string]interface{}{
		"@context": activityStreamsContext,
		"id":       s.activityURI(),
		"type":     "Undo",
		"actor":    local.URI,
		"object": map[string]interface{}{
			"type":   "Follow",
			"actor":  local.URI,
			"object": remote.URI,
		},
	}

	if err := s.Deliver(acc, remote.URI, undo); err != nil {
		log.Printf("Outbox: Failed to deliver Undo to %s: %v", remote.URI, err)
	}
	return nil
}
