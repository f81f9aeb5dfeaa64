package activitypub

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// NotifyMentions records the mention rows of a post and creates one mention
// notification per newly-mentioned actor, excluding the author. Dedup is
// two-staged: the mentions table absorbs re-processing of the same post,
// and the notifications table absorbs redelivered (post, author, recipient)
// triples. Persistence failures propagate.
func (s *Service) NotifyMentions(postId uuid.UUID, author *domain.Actor, mentioned []domain.Actor) error {
	for _, actor := range mentioned {
		if actor.Id == author.Id {
			continue
		}

		err, inserted := s.DB.CreateMention(postId, actor.Id)
		if err != nil {
			return fmt.Errorf("failed to record mention: %w", err)
		}
		if !inserted {
			continue
		}

		err, exists := s.DB.HasMentionNotification(actor.Id, postId, author.Id)
		if err != nil {
			return fmt.Errorf("failed to check mention notification: %w", err)
		}
		if exists {
			continue
		}

		notification := &domain.Notification{
			ActorId:     actor.Id,
			Kind:        domain.NotificationMention,
			PostId:      uuid.NullUUID{UUID: postId, Valid: true},
			FromActorId: uuid.NullUUID{UUID: author.Id, Valid: true},
			Message:     fmt.Sprintf("%s mentioned you", author.Name()),
		}
		if err := s.DB.CreateNotification(notification); err != nil {
			return fmt.Errorf("failed to create mention notification: %w", err)
		}
	}
	return nil
}

// NotifyFollow creates a follow notification for the recipient.
func (s *Service) NotifyFollow(recipientId uuid.UUID, follower *domain.Actor) error {
	notification := &domain.Notification{
		ActorId:     recipientId,
		Kind:        domain.NotificationFollow,
		FromActorId: uuid.NullUUID{UUID: follower.Id, Valid: true},
		Message:     fmt.Sprintf("%s followed you", follower.Name()),
	}
	return s.DB.CreateNotification(notification)
}

// Read-state operations, all scoped to the recipient: a target that does
// not belong to the caller is a silent no-op.

func (s *Service) MarkNotificationRead(id uuid.UUID, recipientId uuid.UUID) error {
	return s.DB.MarkNotificationRead(id, recipientId)
}

func (s *Service) MarkAllNotificationsRead(recipientId uuid.UUID) error {
	return s.DB.MarkAllNotificationsRead(recipientId)
}

func (s *Service) DeleteNotification(id uuid.UUID, recipientId uuid.UUID) error {
	return s.DB.DeleteNotification(id, recipientId)
}

func (s *Service) DeleteAllNotifications(recipientId uuid.UUID) error {
	return s.DB.DeleteAllNotifications(recipientId)
}
