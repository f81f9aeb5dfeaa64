package activitypub

import (
	"database/sql"
	"log"
	"regexp"
	"strings"

	"github.com/loxodon-dev/loxodon/domain"
)

// A mention token starts at the beginning of the text or after whitespace,
// begins with @, and is a username optionally followed by @domain.tld.
var mentionRegexp = regexp.MustCompile(`(?:^|\s)@([a-zA-Z0-9_.-]+(?:@[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,})?)`)

// ParseMentions extracts the unique mention tokens from a post body in
// order of first appearance. Duplicate literals are collapsed, case is
// preserved.
func ParseMentions(text string) []string {
	matches := mentionRegexp.FindAllStringSubmatch(text, -1)

	seen := make(map[string]bool)
	tokens := make([]string, 0, len(matches))
	for _, match := range matches {
		token := match[1]
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// ResolveMentions resolves each token independently against the actor
// directory. Bare tokens try a local username first, then the local-domain
// handle; tokens with a domain match only the full handle. Unresolvable
// tokens are dropped silently, and one failed lookup never prevents the
// resolution of the others.
func (s *Service) ResolveMentions(tokens []string) []domain.Actor {
	actors := make([]domain.Actor, 0, len(tokens))
	seen := make(map[string]bool)

	for _, token := range tokens {
		var actor *domain.Actor
		var err error

		if username, domainName, hasDomain := strings.Cut(token, "@"); hasDomain {
			err, actor = s.DB.ReadActorByHandle(username, domainName)
		} else {
			err, actor = s.DB.ReadLocalActorByUsername(token)
			if err == sql.ErrNoRows {
				err, actor = s.DB.ReadActorByHandle(token, s.Conf.Conf.SslDomain)
			}
		}

		if err != nil || actor == nil {
			if err != nil && err != sql.ErrNoRows {
				log.Printf("Mentions: Failed to resolve @%s: %v", token, err)
			}
			continue
		}
		if seen[actor.URI] {
			continue
		}
		seen[actor.URI] = true
		actors = append(actors, *actor)
	}
	return actors
}
