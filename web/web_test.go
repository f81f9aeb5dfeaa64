package web

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/loxodon-dev/loxodon/activitypub"
	"github.com/loxodon-dev/loxodon/db"
	"github.com/loxodon-dev/loxodon/domain"
	"github.com/loxodon-dev/loxodon/util"
)

// offlineFetcher fails every lookup so no test ever leaves the process.
type offlineFetcher struct{}

func (offlineFetcher) FetchActor(actorURI string) (*domain.Actor, error) {
	return nil, fmt.Errorf("offline: %s", actorURI)
}

// newTestService builds a service on a throwaway database with remote
// fetches stubbed out.
func newTestService(t *testing.T) *activitypub.Service {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	conf := &util.AppConfig{}
	conf.Conf.Host = "127.0.0.1"
	conf.Conf.HttpPort = 8080
	conf.Conf.SslDomain = "local.example"

	svc := activitypub.NewService(database, conf)
	svc.Fetch = offlineFetcher{}
	return svc
}
