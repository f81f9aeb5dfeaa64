package activitypub

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// actorCacheMaxAge is how long a fetched remote actor stays fresh before
// GetOrFetchActor re-fetches it.
const actorCacheMaxAge = 24 * time.Hour

// Fetcher resolves a remote actor URI into an actor descriptor. The
// returned actor is not yet persisted.
type Fetcher interface {
	FetchActor(actorURI string) (*domain.Actor, error)
}

// ActorResponse represents the JSON structure of an ActivityPub actor
type ActorResponse struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name"`
	Inbox             string      `json:"inbox"`
	URL               string      `json:"url"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// HTTPFetcher fetches actor documents over HTTP.
type HTTPFetcher struct{}

func (f *HTTPFetcher) FetchActor(actorURI string) (*domain.Actor, error) {
	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "loxodon/1.0 ActivityPub")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var actor ActorResponse
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	// preferredUsername is required too: an empty username would collide
	// with the next nameless actor on the same domain.
	if actor.ID == "" || actor.Inbox == "" || actor.PreferredUsername == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	domainName, err := extractDomain(actor.ID)
	if err != nil {
		return nil, err
	}

	return &domain.Actor{
		URI:            actor.ID,
		Username:       actor.PreferredUsername,
		Domain:         domainName,
		DisplayName:    actor.Name,
		InboxURI:       actor.Inbox,
		SharedInboxURI: actor.Endpoints.SharedInbox,
		ProfileURL:     actor.URL,
		PublicKeyPem:   actor.PublicKey.PublicKeyPem,
	}, nil
}

// UpsertActor validates the descriptor and writes it keyed by URI.
// Descriptors without a URI or inbox are rejected: the call logs, returns
// no actor, and the caller drops its operation.
func (s *Service) UpsertActor(actor *domain.Actor) (*domain.Actor, error) {
	if actor == nil || actor.URI == "" || actor.InboxURI == "" {
		log.Printf("Actors: Rejecting actor descriptor with missing uri or inbox")
		return nil, nil
	}
	err, stored := s.DB.UpsertActor(actor)
	if err != nil {
		return nil, fmt.Errorf("failed to store actor: %w", err)
	}
	return stored, nil
}

// GetOrFetchActor returns the actor from the directory, fetching and
// upserting it when it is unknown or its cached copy has gone stale.
func (s *Service) GetOrFetchActor(actorURI string) (*domain.Actor, error) {
	err, cached := s.DB.ReadActorByURI(actorURI)
	if err == nil && cached != nil {
		if cached.Local() || time.Since(cached.UpdatedAt) < actorCacheMaxAge {
			return cached, nil
		}
	}

	fetched, err := s.Fetch.FetchActor(actorURI)
	if err != nil {
		if cached != nil {
			// Stale beats gone.
			return cached, nil
		}
		return nil, err
	}

	stored, err := s.UpsertActor(fetched)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("fetched actor %s is incomplete", actorURI)
	}
	return stored, nil
}

// EnsureLocalActor creates or refreshes the directory row of a local
// account. Local actors live in the same table as remote ones so the graph
// references a single id space.
func (s *Service) EnsureLocalActor(acc *domain.Account) (*domain.Actor, error) {
	err, existing := s.DB.ReadActorByAccountId(acc.Id)
	if err == nil && existing != nil {
		return existing, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	sslDomain := s.Conf.Conf.SslDomain
	actor := &domain.Actor{
		URI:            s.ActorURI(acc.Username),
		Username:       acc.Username,
		Domain:         sslDomain,
		InboxURI:       fmt.Sprintf("https://%s/users/%s/inbox", sslDomain, acc.Username),
		SharedInboxURI: fmt.Sprintf("https://%s/inbox", sslDomain),
		ProfileURL:     fmt.Sprintf("https://%s/u/%s", sslDomain, acc.Username),
		AccountId:      uuid.NullUUID{UUID: acc.Id, Valid: true},
	}

	stored, err := s.UpsertActor(actor)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("local actor for %s is incomplete", acc.Username)
	}
	return stored, nil
}

// extractDomain extracts the domain from an actor URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid actor URI: %s", actorURI)
	}
	return parsed.Host, nil
}
