package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

func TestCreateMentionIsIdempotent(t *testing.T) {
	database := setupTestDB(t)

	bob := createTestActor(t, database, "bob", "remote.example")
	postId := uuid.New()

	err, inserted := database.CreateMention(postId, bob.Id)
	if err != nil {
		t.Fatalf("CreateMention failed: %v", err)
	}
	if !inserted {
		t.Error("Expected first mention to be inserted")
	}

	err, inserted = database.CreateMention(postId, bob.Id)
	if err != nil {
		t.Fatalf("Second CreateMention failed: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate mention to be a no-op")
	}
}

func TestMentionNotificationDedup(t *testing.T) {
	database := setupTestDB(t)

	alice := createTestActor(t, database, "alice", "local.example")
	bob := createTestActor(t, database, "bob", "remote.example")
	postId := uuid.New()

	err, exists := database.HasMentionNotification(bob.Id, postId, alice.Id)
	if err != nil {
		t.Fatalf("HasMentionNotification failed: %v", err)
	}
	if exists {
		t.Error("Expected no notification yet")
	}

	notification := &domain.Notification{
		ActorId:     bob.Id,
		Kind:        domain.NotificationMention,
		PostId:      uuid.NullUUID{UUID: postId, Valid: true},
		FromActorId: uuid.NullUUID{UUID: alice.Id, Valid: true},
		Message:     "alice mentioned you",
	}
	if err := database.CreateNotification(notification); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	err, exists = database.HasMentionNotification(bob.Id, postId, alice.Id)
	if err != nil {
		t.Fatalf("HasMentionNotification failed: %v", err)
	}
	if !exists {
		t.Error("Expected notification to be found")
	}

	// Same post, different recipient: no dedup hit.
	err, exists = database.HasMentionNotification(alice.Id, postId, alice.Id)
	if err != nil {
		t.Fatalf("HasMentionNotification failed: %v", err)
	}
	if exists {
		t.Error("Expected no notification for other recipient")
	}
}

func TestNotificationReadState(t *testing.T) {
	database := setupTestDB(t)

	alice := createTestActor(t, database, "alice", "local.example")
	bob := createTestActor(t, database, "bob", "remote.example")

	notification := &domain.Notification{
		ActorId:     alice.Id,
		Kind:        domain.NotificationFollow,
		FromActorId: uuid.NullUUID{UUID: bob.Id, Valid: true},
		Message:     "bob followed you",
	}
	if err := database.CreateNotification(notification); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	err, unread := database.CountUnreadNotifications(alice.Id)
	if err != nil {
		t.Fatalf("CountUnreadNotifications failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("Expected 1 unread, got %d", unread)
	}

	// A different recipient must not be able to mark it read.
	if err := database.MarkNotificationRead(notification.Id, bob.Id); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	err, unread = database.CountUnreadNotifications(alice.Id)
	if err != nil {
		t.Fatalf("CountUnreadNotifications failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("Expected foreign mark to be a no-op, got %d unread", unread)
	}

	if err := database.MarkNotificationRead(notification.Id, alice.Id); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	err, unread = database.CountUnreadNotifications(alice.Id)
	if err != nil {
		t.Fatalf("CountUnreadNotifications failed: %v", err)
	}
	if unread != 0 {
		t.Errorf("Expected 0 unread, got %d", unread)
	}
}

func TestDeleteNotificationsScopedToRecipient(t *testing.T) {
	database := setupTestDB(t)

	alice := createTestActor(t, database, "alice", "local.example")
	bob := createTestActor(t, database, "bob", "remote.example")

	for i := 0; i < 2; i++ {
		notification := &domain.Notification{
			ActorId:     alice.Id,
			Kind:        domain.NotificationFollow,
			FromActorId: uuid.NullUUID{UUID: bob.Id, Valid: true},
			Message:     "bob followed you",
		}
		if err := database.CreateNotification(notification); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}

	// Foreign recipient deletes nothing.
	if err := database.DeleteAllNotifications(bob.Id); err != nil {
		t.Fatalf("DeleteAllNotifications failed: %v", err)
	}
	err, notifications := database.ReadNotificationsByActorId(alice.Id)
	if err != nil {
		t.Fatalf("ReadNotificationsByActorId failed: %v", err)
	}
	if len(*notifications) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(*notifications))
	}

	if err := database.DeleteNotification((*notifications)[0].Id, alice.Id); err != nil {
		t.Fatalf("DeleteNotification failed: %v", err)
	}
	err, notifications = database.ReadNotificationsByActorId(alice.Id)
	if err != nil {
		t.Fatalf("ReadNotificationsByActorId failed: %v", err)
	}
	if len(*notifications) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(*notifications))
	}

	if err := database.DeleteAllNotifications(alice.Id); err != nil {
		t.Fatalf("DeleteAllNotifications failed: %v", err)
	}
	err, notifications = database.ReadNotificationsByActorId(alice.Id)
	if err != nil {
		t.Fatalf("ReadNotificationsByActorId failed: %v", err)
	}
	if len(*notifications) != 0 {
		t.Errorf("Expected 0 notifications, got %d", len(*notifications))
	}
}

func TestKeyPairUniquePerAlgorithm(t *testing.T) {
	database := setupTestDB(t)

	err, acc := database.CreateAccount("alice")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	first := &domain.KeyPair{
		Id:         uuid.New(),
		AccountId:  acc.Id,
		Algorithm:  domain.KeyAlgRsa,
		PublicPem:  "pub1",
		PrivatePem: "priv1",
	}
	if err := database.CreateKeyPair(first); err != nil {
		t.Fatalf("CreateKeyPair failed: %v", err)
	}

	// A second pair for the same algorithm loses the race and is dropped.
	second := &domain.KeyPair{
		Id:         uuid.New(),
		AccountId:  acc.Id,
		Algorithm:  domain.KeyAlgRsa,
		PublicPem:  "pub2",
		PrivatePem: "priv2",
	}
	if err := database.CreateKeyPair(second); err != nil {
		t.Fatalf("Second CreateKeyPair failed: %v", err)
	}

	err, stored := database.ReadKeyPair(acc.Id, domain.KeyAlgRsa)
	if err != nil {
		t.Fatalf("ReadKeyPair failed: %v", err)
	}
	if stored.PublicPem != "pub1" {
		t.Errorf("Expected first pair to survive, got '%s'", stored.PublicPem)
	}

	ed := &domain.KeyPair{
		Id:         uuid.New(),
		AccountId:  acc.Id,
		Algorithm:  domain.KeyAlgEd25519,
		PublicPem:  "edpub",
		PrivatePem: "edpriv",
	}
	if err := database.CreateKeyPair(ed); err != nil {
		t.Fatalf("CreateKeyPair for ed25519 failed: %v", err)
	}
	err, stored = database.ReadKeyPair(acc.Id, domain.KeyAlgEd25519)
	if err != nil {
		t.Fatalf("ReadKeyPair failed: %v", err)
	}
	if stored.PublicPem != "edpub" {
		t.Errorf("Expected ed25519 pair, got '%s'", stored.PublicPem)
	}
}
