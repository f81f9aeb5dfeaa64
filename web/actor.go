package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/activitypub"
)

type action uint

const (
	id action = iota
	inbox
	outbox
	followers
	following
	sharedInbox
)

// GetActor renders the ActivityPub actor document of a local user. The
// document carries the RSA key under publicKey (the signing key peers
// verify against) and both keys under assertionMethod. A missing keypair
// cannot be papered over: peers would cache a document they can never
// verify signatures against, so key errors are returned as-is.
func GetActor(username string, svc *activitypub.Service) (error, string) {
	err, actor := svc.DB.ReadLocalActorByUsername(username)
	if err != nil || actor == nil {
		return fmt.Errorf("unknown user %s", username), "{}"
	}

	pairs, err := activitypub.GetOrCreateKeyPairs(svc.DB, actor.AccountId.UUID)
	if err != nil {
		return fmt.Errorf("failed to load keys for %s: %w", username, err), "{}"
	}

	domainName := svc.Conf.Conf.SslDomain

	displayName := actor.DisplayName
	if displayName == "" {
		displayName = username
	}

	assertionMethods := make([]map[string]interface{}, 0, len(pairs))
	for _, pair := range pairs {
		assertionMethods = append(assertionMethods, map[string]interface{}{
			"id":           fmt.Sprintf("%s#%s-key", actor.URI, pair.Algorithm),
			"owner":        actor.URI,
			"publicKeyPem": pair.PublicPem,
		})
	}

	doc := map[string]interface{}{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        actor.URI,
		"type":                      "Person",
		"preferredUsername":         username,
		"name":                      displayName,
		"inbox":                     getIRI(domainName, username, inbox),
		"outbox":                    getIRI(domainName, username, outbox),
		"followers":                 getIRI(domainName, username, followers),
		"following":                 getIRI(domainName, username, following),
		"url":                       actor.ProfileURL,
		"manuallyApprovesFollowers": false,
		"discoverable":              true,
		"endpoints": map[string]interface{}{
			"sharedInbox": getIRI(domainName, username, sharedInbox),
		},
		"publicKey": map[string]interface{}{
			"id":           fmt.Sprintf("%s#main-key", actor.URI),
			"owner":        actor.URI,
			"publicKeyPem": pairs[0].PublicPem,
		},
		"assertionMethod": assertionMethods,
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

func getIRI(domainName string, username string, action action) string {
	prefix := fmt.Sprintf("https://%s/users/%s", domainName, username)
	switch action {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case outbox:
		return fmt.Sprintf("%s/outbox", prefix)
	case followers:
		return fmt.Sprintf("%s/followers", prefix)
	case following:
		return fmt.Sprintf("%s/following", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domainName)
	default:
		return ""
	}
}

// GetFollowCollection renders the followers or following collection of a
// local user as an OrderedCollection carrying only the count.
func GetFollowCollection(username string, collection action, svc *activitypub.Service) (error, string) {
	err, actor := svc.DB.ReadLocalActorByUsername(username)
	if err != nil || actor == nil {
		return fmt.Errorf("unknown user %s", username), "{}"
	}

	var count int
	switch collection {
	case followers:
		err, count = svc.DB.CountFollowers(actor.Id)
	case following:
		err, count = svc.DB.CountFollowing(actor.Id)
	default:
		return fmt.Errorf("not a follow collection"), "{}"
	}
	if err != nil {
		return err, "{}"
	}

	doc := map[string]interface{}{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         getIRI(svc.Conf.Conf.SslDomain, username, collection),
		"type":       "OrderedCollection",
		"totalItems": count,
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetNoteObject renders a local post as an ActivityPub Note.
func GetNoteObject(noteId uuid.UUID, svc *activitypub.Service) (error, string) {
	err, post := svc.DB.ReadPostById(noteId)
	if err != nil || post == nil {
		return fmt.Errorf("unknown note %s", noteId), "{}"
	}

	err, author := svc.DB.ReadActorById(post.ActorId)
	if err != nil || author == nil || !author.Local() {
		return fmt.Errorf("note %s has no local author", noteId), "{}"
	}

	doc := map[string]interface{}{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           post.URI,
		"type":         "Note",
		"attributedTo": author.URI,
		"content":      post.Content,
		"published":    post.CreatedAt.Format(time.RFC3339),
		"to": []string{
			"https://www.w3.org/ns/activitystreams#Public",
		},
		"cc": []string{
			fmt.Sprintf("%s/followers", author.URI),
		},
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}
