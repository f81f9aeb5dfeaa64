package activitypub

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/loxodon-dev/loxodon/db"
	"github.com/loxodon-dev/loxodon/domain"
	"github.com/loxodon-dev/loxodon/util"
)

// RecipientFollowers is the collection name that fans an activity out to
// the sender's live follower set.
const RecipientFollowers = "followers"

// Sender delivers one signed activity to one inbox. Implementations must
// treat each call independently; the dispatcher isolates failures.
type Sender interface {
	SendActivity(inboxURI string, activity interface{}, from *domain.Account) error
}

// Endpoint is a delivery target resolved from an actor's stored addresses.
type Endpoint struct {
	InboxURI       string
	SharedInboxURI string
}

// DeliveryURI prefers the shared inbox so co-hosted recipients collapse
// into one delivery.
func (e Endpoint) DeliveryURI() string {
	if e.SharedInboxURI != "" {
		return e.SharedInboxURI
	}
	return e.InboxURI
}

// Deliver sends the activity to a single recipient actor URI or, when the
// recipient is RecipientFollowers, to the sender's follower set. Fan-out
// deliveries run concurrently; a failure for one endpoint is logged and
// never aborts the rest. Only local resolution errors are returned.
func (s *Service) Deliver(from *domain.Account, recipient string, activity interface{}) error {
	err, sender := s.DB.ReadActorByAccountId(from.Id)
	if err != nil || sender == nil {
		return fmt.Errorf("no actor for account %s: %w", from.Username, err)
	}

	if recipient == RecipientFollowers {
		err, followers := s.DB.ReadFollowers(sender.Id)
		if err != nil {
			return fmt.Errorf("failed to read followers: %w", err)
		}
		endpoints := resolveEndpoints(*followers, sender)
		s.deliverAll(from, endpoints, activity)
		return nil
	}

	err, target := s.DB.ReadActorByURI(recipient)
	if err != nil || target == nil {
		return fmt.Errorf("unknown recipient %s", recipient)
	}

	// Single recipients get their own inbox, not the shared one.
	s.deliverAll(from, []string{target.InboxURI}, activity)
	return nil
}

// DeliverToMentioned sends the activity directly to every mentioned actor
// that is not already covered by the follower fan-out. Failures are logged
// and skipped silently.
func (s *Service) DeliverToMentioned(from *domain.Account, author *domain.Actor, mentioned []domain.Actor, activity interface{}) {
	var targets []string
	seen := make(map[string]bool)
	for _, actor := range mentioned {
		if actor.Id == author.Id {
			continue
		}
		err, follows := s.DB.IsFollower(author.Id, actor.Id)
		if err != nil {
			log.Printf("Delivery: Failed to check follower state of %s: %v", actor.Handle(), err)
			continue
		}
		if follows {
			// Already reached by the follower fan-out.
			continue
		}
		if actor.InboxURI == "" || seen[actor.InboxURI] {
			continue
		}
		seen[actor.InboxURI] = true
		targets = append(targets, actor.InboxURI)
	}
	s.deliverAll(from, targets, activity)
}

// deliverAll performs the actual fan-out: one goroutine per endpoint, each
// failure caught and logged on its own.
func (s *Service) deliverAll(from *domain.Account, inboxURIs []string, activity interface{}) {
	var wg sync.WaitGroup
	for _, inboxURI := range inboxURIs {
		wg.Add(1)
		go func(uri string) {
			defer wg.Done()
			if err := s.Send.SendActivity(uri, activity, from); err != nil {
				log.Printf("Delivery: Failed to deliver to %s: %v", uri, err)
			}
		}(inboxURI)
	}
	wg.Wait()
}

// resolveEndpoints maps follower actors onto delivery URIs, de-duplicating
// shared inboxes and excluding the sender's own addresses.
func resolveEndpoints(followers []domain.Actor, sender *domain.Actor) []string {
	seen := make(map[string]bool)
	var uris []string
	for _, follower := range followers {
		if follower.Id == sender.Id {
			continue
		}
		endpoint := Endpoint{InboxURI: follower.InboxURI, SharedInboxURI: follower.SharedInboxURI}
		uri := endpoint.DeliveryURI()
		if uri == "" || uri == sender.InboxURI || uri == sender.SharedInboxURI {
			continue
		}
		if seen[uri] {
			continue
		}
		seen[uri] = true
		uris = append(uris, uri)
	}
	return uris
}

// HTTPSender signs and posts activities over HTTP.
type HTTPSender struct {
	DB   *db.DB
	Conf *util.AppConfig
}

func (hs *HTTPSender) SendActivity(inboxURI string, activity interface{}, from *domain.Account) error {
	activityJSON, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	// Calculate digest for HTTP signature
	hash := sha256.Sum256(activityJSON)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	req, err := http.NewRequest("POST", inboxURI, bytes.NewReader(activityJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "loxodon/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	// The RSA pair is the primary signing key.
	pairs, err := GetOrCreateKeyPairs(hs.DB, from.Id)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}
	privateKey, err := ParsePrivateKey(pairs[0].PrivatePem)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	keyID := fmt.Sprintf("https://%s/users/%s#main-key", hs.Conf.Conf.SslDomain, from.Username)
	if err := SignRequest(req, privateKey, keyID); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	return nil
}
