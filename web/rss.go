package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/loxodon-dev/loxodon/activitypub"
	"github.com/loxodon-dev/loxodon/domain"
	"github.com/loxodon-dev/loxodon/util"
)

// GetRSS renders the posts of one local user, or of the whole instance
// when no username is given, as an RSS feed.
func GetRSS(svc *activitypub.Service, username string) (string, error) {
	var err error
	var posts *[]domain.Post
	var title string
	var author string

	link := fmt.Sprintf("https://%s/feed", svc.Conf.Conf.SslDomain)

	if username != "" {
		err, actor := svc.DB.ReadLocalActorByUsername(username)
		if err != nil || actor == nil {
			log.Printf("RSS: Could not find user %s: %v", username, err)
			return "", errors.New("error retrieving posts by username")
		}
		err, posts = svc.DB.ReadPostsByActorId(actor.Id)
		if err != nil || posts == nil {
			log.Printf("RSS: Could not get posts of %s: %v", username, err)
			return "", errors.New("error retrieving posts by username")
		}
		title = fmt.Sprintf("Loxodon Posts - %s", username)
		author = username
		link = fmt.Sprintf("%s?username=%s", link, username)
	} else {
		err, posts = svc.DB.ReadLocalPosts()
		if err != nil || posts == nil {
			log.Printf("RSS: Could not get posts: %v", err)
			return "", errors.New("error retrieving posts")
		}
		title = "All Loxodon Posts"
		author = "everyone"
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("post feed of %s", svc.Conf.Conf.SslDomain),
		Author:      &feeds.Author{Name: author, Email: fmt.Sprintf("%s@%s", author, svc.Conf.Conf.SslDomain)},
		Created:     time.Now(),
	}

	// One lookup per distinct author, not per item.
	names := make(map[uuid.UUID]string)

	var feedItems []*feeds.Item
	for _, post := range *posts {
		name, ok := names[post.ActorId]
		if !ok {
			err, actor := svc.DB.ReadActorById(post.ActorId)
			if err != nil || actor == nil {
				continue
			}
			name = actor.Username
			names[post.ActorId] = name
		}
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      post.Id.String(),
				Title:   post.CreatedAt.Format(util.DateTimeFormat()),
				Link:    &feeds.Link{Href: fmt.Sprintf("https://%s/feed/%s", svc.Conf.Conf.SslDomain, post.Id)},
				Content: post.Content,
				Author:  &feeds.Author{Name: name, Email: fmt.Sprintf("%s@%s", name, svc.Conf.Conf.SslDomain)},
				Created: post.CreatedAt,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}

// GetRSSItem renders a single post as a one-item RSS feed.
func GetRSSItem(svc *activitypub.Service, id uuid.UUID) (string, error) {
	err, post := svc.DB.ReadPostById(id)
	if err != nil || post == nil {
		log.Printf("RSS: Could not get post %s: %v", id, err)
		return "", errors.New("error retrieving post by id")
	}

	err, actor := svc.DB.ReadActorById(post.ActorId)
	if err != nil || actor == nil {
		log.Printf("RSS: Could not get author of post %s: %v", id, err)
		return "", errors.New("error retrieving post author")
	}

	email := fmt.Sprintf("%s@%s", actor.Username, svc.Conf.Conf.SslDomain)
	url := fmt.Sprintf("https://%s/feed/%s", svc.Conf.Conf.SslDomain, post.Id)

	feed := &feeds.Feed{
		Title:       "Single Loxodon Post",
		Link:        &feeds.Link{Href: url},
		Description: fmt.Sprintf("post feed of %s", svc.Conf.Conf.SslDomain),
		Author:      &feeds.Author{Name: actor.Username, Email: email},
		Created:     time.Now(),
	}

	feed.Items = []*feeds.Item{
		{
			Id:      post.Id.String(),
			Title:   post.CreatedAt.Format(util.DateTimeFormat()),
			Link:    &feeds.Link{Href: url},
			Content: post.Content,
			Author:  &feeds.Author{Name: actor.Username, Email: email},
			Created: post.CreatedAt,
		},
	}

	return feed.ToRss()
}
