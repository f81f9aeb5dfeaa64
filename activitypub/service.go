package activitypub

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/db"
	"github.com/loxodon-dev/loxodon/domain"
	"github.com/loxodon-dev/loxodon/util"
)

// Service bundles the federation components around one database handle and
// one configuration. It is constructed once at startup and passed by
// reference; there is no package-level state.
type Service struct {
	DB   *db.DB
	Conf *util.AppConfig

	// Fetch and Send are the remote collaborators; tests swap them out.
	Fetch Fetcher
	Send  Sender
}

func NewService(database *db.DB, conf *util.AppConfig) *Service {
	return &Service{
		DB:    database,
		Conf:  conf,
		Fetch: &HTTPFetcher{},
		Send:  &HTTPSender{DB: database, Conf: conf},
	}
}

// ActorURI returns the canonical URI of a local user.
func (s *Service) ActorURI(username string) string {
	return fmt.Sprintf("https://%s/users/%s", s.Conf.Conf.SslDomain, username)
}

// NoteURI returns the canonical URI of a local post.
func (s *Service) NoteURI(id uuid.UUID) string {
	return fmt.Sprintf("https://%s/notes/%s", s.Conf.Conf.SslDomain, id.String())
}

func (s *Service) activityURI() string {
	return fmt.Sprintf("https://%s/activities/%s", s.Conf.Conf.SslDomain, uuid.New().String())
}

// RegisterAccount creates a local account together with its directory actor.
// Keypairs are generated lazily on first actor dispatch.
func (s *Service) RegisterAccount(username string) (*domain.Account, error) {
	err, acc := s.DB.CreateAccount(username)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if _, err := s.EnsureLocalActor(acc); err != nil {
		return nil, err
	}
	return acc, nil
}
