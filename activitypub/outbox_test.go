package activitypub

import (
	"strings"
	"testing"

	"github.com/loxodon-dev/loxodon/domain"
)

func TestCreateNoteFederatesToFollowersAndMentioned(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")
	bob := addRemoteFollower(t, svc, alice, remoteActor("bob"))
	err, carol := svc.DB.UpsertActor(remoteActor("carol"))
	if err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}

	post, err2 := svc.CreateNote(acc, "hello @carol@remote.example")
	if err2 != nil {
		t.Fatalf("CreateNote failed: %v", err2)
	}

	if !strings.HasPrefix(post.URI, "https://local.example/notes/") {
		t.Errorf("Expected canonical note URI, got '%s'", post.URI)
	}

	err, stored := svc.DB.ReadPostById(post.Id)
	if err != nil {
		t.Fatalf("ReadPostById failed: %v", err)
	}
	if stored.URI != post.URI {
		t.Errorf("Expected persisted URI '%s', got '%s'", post.URI, stored.URI)
	}

	// carol was mentioned and gets a notification.
	err, notifications := svc.DB.ReadNotificationsByActorId(carol.Id)
	if err != nil {
		t.Fatalf("ReadNotificationsByActorId failed: %v", err)
	}
	if len(*notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(*notifications))
	}
	if (*notifications)[0].Kind != domain.NotificationMention {
		t.Errorf("Expected mention notification, got '%s'", (*notifications)[0].Kind)
	}

	// The Create reaches the follower and the mentioned non-follower.
	if !sender.sentTo(bob.InboxURI) {
		t.Errorf("Expected delivery to follower %s, got %v", bob.InboxURI, sender.inboxes())
	}
	if !sender.sentTo(carol.InboxURI) {
		t.Errorf("Expected direct delivery to %s, got %v", carol.InboxURI, sender.inboxes())
	}
	if len(sender.inboxes()) != 2 {
		t.Errorf("Expected 2 deliveries, got %v", sender.inboxes())
	}
}

func TestCreateNoteMentionedFollowerGetsOneCopy(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")
	bob := addRemoteFollower(t, svc, alice, remoteActor("bob"))

	if _, err := svc.CreateNote(acc, "hi @bob@remote.example"); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	// bob is both follower and mentioned; the direct pass must not double up.
	count := 0
	for _, uri := range sender.inboxes() {
		if uri == bob.InboxURI {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 delivery to bob, got %d (%v)", count, sender.inboxes())
	}
}

func TestCreateNoteNormalizesContent(t *testing.T) {
	svc, _, _ := newTestService(t)

	acc, _ := followedLocalActor(t, svc, "alice")

	post, err := svc.CreateNote(acc, "first line\n\n\nwith <b>markup</b>")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if strings.Contains(post.Content, "<b>") {
		t.Errorf("Expected markup to be escaped, got '%s'", post.Content)
	}
}

func TestSendFollow(t *testing.T) {
	svc, fetcher, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")
	bob := remoteActor("bob")
	fetcher.actors[bob.URI] = bob

	if err := svc.SendFollow(acc, bob.URI); err != nil {
		t.Fatalf("SendFollow failed: %v", err)
	}

	if !sender.sentTo(bob.InboxURI) {
		t.Errorf("Expected Follow delivery to %s, got %v", bob.InboxURI, sender.inboxes())
	}

	// The edge waits for the remote Accept.
	err, count := svc.DB.CountFollowing(alice.Id)
	if err != nil {
		t.Fatalf("CountFollowing failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no edge before Accept, got %d", count)
	}
}

func TestUnfollowRemovesEdgeAndSendsUndo(t *testing.T) {
	svc, fetcher, sender := newTestService(t)

	acc, alice := followedLocalActor(t, svc, "alice")
	bob := remoteActor("bob")
	fetcher.actors[bob.URI] = bob

	err, stored := svc.DB.UpsertActor(bob)
	if err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}
	if err, _ := svc.DB.AddFollow(stored.Id, alice.Id); err != nil {
		t.Fatalf("AddFollow failed: %v", err)
	}
	sender.reset()

	if err := svc.Unfollow(acc, bob.URI); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}

	err, count := svc.DB.CountFollowing(alice.Id)
	if err != nil {
		t.Fatalf("CountFollowing failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected edge to be removed, got %d", count)
	}
	if !sender.sentTo(bob.InboxURI) {
		t.Errorf("Expected Undo delivery to %s, got %v", bob.InboxURI, sender.inboxes())
	}
}

func TestUnfollowUnknownActorIsNoop(t *testing.T) {
	svc, _, sender := newTestService(t)

	acc, _ := followedLocalActor(t, svc, "alice")

	if err := svc.Unfollow(acc, "https://remote.example/users/ghost"); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}
	if len(sender.inboxes()) != 0 {
		t.Errorf("Expected no deliveries, got %v", sender.inboxes())
	}
}
