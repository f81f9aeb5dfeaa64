package web

import (
	"fmt"

	"github.com/loxodon-dev/loxodon/activitypub"
)

func GetWebfinger(user string, svc *activitypub.Service) (error, string) {
	err, actor := svc.DB.ReadLocalActorByUsername(user)
	if err != nil || actor == nil {
		return fmt.Errorf("unknown user %s", user), GetWebFingerNotFound()
	}

	return nil, fmt.Sprintf(
		`{
					"subject": "acct:%s@%s",

					"links": [
						{
							"rel": "self",
							"type": "application/activity+json",
							"href": "%s"
						}
					]
				}`, actor.Username, svc.Conf.Conf.SslDomain, actor.URI)
}

func GetWebFingerNotFound() string {
	return `{"detail":"Not Found"}`
}
