package activitypub

import (
	"testing"

	"github.com/loxodon-dev/loxodon/domain"
)

// followedLocalActor registers a local account and returns it with its actor.
func followedLocalActor(t *testing.T, svc *Service, username string) (*domain.Account, *domain.Actor) {
	t.Helper()
	acc, err := svc.RegisterAccount(username)
	if err != nil {
		t.Fatalf("RegisterAccount failed: %v", err)
	}
	err2, actor := svc.DB.ReadActorByAccountId(acc.Id)
	if err2 != nil {
		t.Fatalf("ReadActorByAccountId failed: %v", err2)
	}
	return acc, actor
}

func addRemoteFollower(t *testing.T, svc *Service, target *domain.Actor, follower *domain.Actor) *domain.Actor {
	t.Helper()
	err, stored := svc.DB.UpsertActor(follower)
	if err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}
	if err, _ := svc.DB.AddFollow(target.Id, stored.Id); err != nil {
		t.Fatalf("AddFollow failed: %v", err)
	}
	return stored
}

func TestDeliverToFollowersDedupesSharedInbox(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")

	// bob and carol live on the same instance behind one shared inbox.
	bob := remoteActor("bob")
	bob.SharedInboxURI = "https://remote.example/inbox"
	carol := remoteActor("carol")
	carol.SharedInboxURI = "https://remote.example/inbox"
	addRemoteFollower(t, svc, alice, bob)
	addRemoteFollower(t, svc, alice, carol)

	if err := svc.Deliver(acc, RecipientFollowers, map[string]interface{}{"type": "Create"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	inboxes := sender.inboxes()
	if len(inboxes) != 1 {
		t.Fatalf("Expected 1 delivery via shared inbox, got %d (%v)", len(inboxes), inboxes)
	}
	if inboxes[0] != "https://remote.example/inbox" {
		t.Errorf("Expected shared inbox, got '%s'", inboxes[0])
	}
}

func TestDeliverToFollowersIsolatesFailures(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")

	bob := remoteActor("bob")
	carol := remoteActor("carol")
	addRemoteFollower(t, svc, alice, bob)
	addRemoteFollower(t, svc, alice, carol)

	sender.failFor[bob.InboxURI] = true

	// One endpoint refusing the delivery neither aborts the fan-out nor
	// surfaces as an error.
	if err := svc.Deliver(acc, RecipientFollowers, map[string]interface{}{"type": "Create"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if !sender.sentTo(carol.InboxURI) {
		t.Errorf("Expected delivery to %s, got %v", carol.InboxURI, sender.inboxes())
	}
	if sender.sentTo(bob.InboxURI) {
		t.Error("Expected failing inbox to record nothing")
	}
}

func TestDeliverToSingleRecipientUsesDirectInbox(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, _ := followedLocalActor(t, svc, "alice")

	bob := remoteActor("bob")
	bob.SharedInboxURI = "https://remote.example/inbox"
	err, stored := svc.DB.UpsertActor(bob)
	if err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}

	if err := svc.Deliver(acc, stored.URI, map[string]interface{}{"type": "Accept"}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	inboxes := sender.inboxes()
	if len(inboxes) != 1 || inboxes[0] != bob.InboxURI {
		t.Errorf("Expected direct delivery to %s, got %v", bob.InboxURI, inboxes)
	}
}

func TestDeliverToUnknownRecipient(t *testing.T) {
	svc, _, _ := newTestService(t)

	acc, _ := followedLocalActor(t, svc, "alice")

	err := svc.Deliver(acc, "https://remote.example/users/ghost", map[string]interface{}{"type": "Accept"})
	if err == nil {
		t.Error("Expected error for unknown recipient")
	}
}

func TestDeliverToMentionedSkipsFollowers(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")

	// bob already follows alice; carol does not.
	bob := addRemoteFollower(t, svc, alice, remoteActor("bob"))
	err, carol := svc.DB.UpsertActor(remoteActor("carol"))
	if err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}

	svc.DeliverToMentioned(acc, alice, []domain.Actor{*bob, *carol, *alice}, map[string]interface{}{"type": "Create"})

	inboxes := sender.inboxes()
	if len(inboxes) != 1 {
		t.Fatalf("Expected 1 direct delivery, got %d (%v)", len(inboxes), inboxes)
	}
	if inboxes[0] != carol.InboxURI {
		t.Errorf("Expected delivery to carol only, got '%s'", inboxes[0])
	}
}

func TestEndpointDeliveryURI(t *testing.T) {
	withShared := Endpoint{InboxURI: "https://remote.example/users/bob/inbox", SharedInboxURI: "https://remote.example/inbox"}
	if withShared.DeliveryURI() != "https://remote.example/inbox" {
		t.Errorf("Expected shared inbox preference, got '%s'", withShared.DeliveryURI())
	}

	withoutShared := Endpoint{InboxURI: "https://remote.example/users/bob/inbox"}
	if withoutShared.DeliveryURI() != "https://remote.example/users/bob/inbox" {
		t.Errorf("Expected personal inbox fallback, got '%s'", withoutShared.DeliveryURI())
	}
}
