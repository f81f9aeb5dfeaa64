package web

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/activitypub"
	"github.com/loxodon-dev/loxodon/util"
	"golang.org/x/time/rate"
)

// NewRouter wires the federation endpoints and the RSS feed into a gin
// engine. The caller decides how to serve it, so tests can drive requests
// without binding a port.
func NewRouter(conf *util.AppConfig, svc *activitypub.Service) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limit: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// RSS feed
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		username := c.Query("username")
		rss, err := GetRSS(svc, username)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	g.GET("/feed/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		feedId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}

		rssItem, err := GetRSSItem(svc, feedId)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rssItem})
		}
	})

	// Stricter rate limit for federation endpoints: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

	g.GET("/notes/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")

		noteId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "Invalid note ID"})
			return
		}

		err, note := GetNoteObject(noteId, svc)
		if err != nil {
			c.JSON(404, gin.H{"error": "Note not found"})
		} else {
			c.Render(200, render.String{Format: note})
		}
	})

	g.GET("/users/:actor", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		err, actor := GetActor(c.Param("actor"), svc)
		if err != nil {
			c.Render(404, render.String{Format: actor})
		} else {
			c.Render(200, render.String{Format: actor})
		}
	})

	g.GET("/users/:actor/followers", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		err, collection := GetFollowCollection(c.Param("actor"), followers, svc)
		if err != nil {
			c.Render(404, render.String{Format: collection})
		} else {
			c.Render(200, render.String{Format: collection})
		}
	})

	g.GET("/users/:actor/following", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		err, collection := GetFollowCollection(c.Param("actor"), following, svc)
		if err != nil {
			c.Render(404, render.String{Format: collection})
		} else {
			c.Render(200, render.String{Format: collection})
		}
	})

	// Both inboxes run the same pipeline; the dispatcher resolves the
	// affected local actors from the activity itself, so the per-user
	// path carries no extra routing information.
	g.POST("/users/:actor/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		handleInbox(c, svc)
	})

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		handleInbox(c, svc)
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")

		resource := c.Query("resource")
		if resource == "" || !strings.HasPrefix(resource, "acct:") {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
			return
		}
		resource = strings.TrimPrefix(resource, "acct:")
		resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.SslDomain))
		err, resp := GetWebfinger(resource, svc)
		if err != nil {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
		} else {
			c.Render(200, render.String{Format: resp})
		}
	})

	return g
}

// handleInbox authenticates an inbound activity against its sender's
// published key and hands it to the dispatcher. Authentication failures
// are the caller's fault (400/401); only a persistence failure inside the
// dispatcher surfaces as 500.
func handleInbox(c *gin.Context, svc *activitypub.Service) {
	body, err := c.GetRawData()
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		c.Status(400)
		return
	}

	var envelope struct {
		Actor string `json:"actor"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Actor == "" {
		log.Printf("Inbox: Rejecting activity without actor")
		c.Status(400)
		return
	}

	sender, err := svc.GetOrFetchActor(envelope.Actor)
	if err != nil || sender == nil {
		log.Printf("Inbox: Could not resolve sender %s: %v", envelope.Actor, err)
		c.Status(401)
		return
	}
	if sender.PublicKeyPem == "" {
		log.Printf("Inbox: Sender %s has no published key", envelope.Actor)
		c.Status(401)
		return
	}

	if _, err := activitypub.VerifyRequest(c.Request, sender.PublicKeyPem); err != nil {
		log.Printf("Inbox: Signature verification failed for %s: %v", envelope.Actor, err)
		c.Status(401)
		return
	}

	if err := svc.ProcessActivity(body); err != nil {
		log.Printf("Inbox: Failed to process activity: %v", err)
		c.Status(500)
		return
	}
	c.Status(202)
}
