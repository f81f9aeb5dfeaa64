package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// Follow edge queries
const (
	// Conflicting inserts are intentional no-ops: Follow activities may be
	// redelivered and the edge must stay unique per (following, follower).
	sqlInsertFollow = `INSERT INTO follows(id, following_id, follower_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(following_id, follower_id) DO NOTHING`
	sqlDeleteFollow = `DELETE FROM follows WHERE following_id = ? AND follower_id = ?`

	sqlCountFollowers = `SELECT COUNT(*) FROM follows WHERE following_id = ?`
	sqlCountFollowing = `SELECT COUNT(*) FROM follows WHERE follower_id = ?`
	sqlSelectFollower = `SELECT COUNT(*) FROM follows WHERE following_id = ? AND follower_id = ?`

	sqlSelectFollowers = `SELECT ` + sqlActorColumnsPrefixed + ` FROM follows
		INNER JOIN actors ON actors.id = follows.follower_id
		WHERE follows.following_id = ?
		ORDER BY follows.created_at DESC`
	sqlSelectFollowing = `SELECT ` + sqlActorColumnsPrefixed + ` FROM follows
		INNER JOIN actors ON actors.id = follows.following_id
		WHERE follows.follower_id = ?
		ORDER BY follows.created_at DESC`

	sqlActorColumnsPrefixed = `actors.id, actors.uri, actors.username, actors.domain, actors.display_name, actors.inbox_uri, actors.shared_inbox_uri, actors.profile_url, actors.public_key_pem, actors.account_id, actors.created_at, actors.updated_at`
)

// AddFollow records that follower follows following. Returns whether a new
// edge was written; re-adding an existing edge is a no-op.
func (db *DB) AddFollow(followingId uuid.UUID, followerId uuid.UUID) (error, bool) {
	inserted := false
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertFollow, uuid.New().String(), followingId.String(), followerId.String(), time.Now())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	return err, inserted
}

// RemoveFollow deletes the edge; removing a non-existent edge is a no-op.
func (db *DB) RemoveFollow(followingId uuid.UUID, followerId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollow, followingId.String(), followerId.String())
		return err
	})
}

func (db *DB) CountFollowers(actorId uuid.UUID) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountFollowers, actorId.String()).Scan(&count)
	return err, count
}

func (db *DB) CountFollowing(actorId uuid.UUID) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountFollowing, actorId.String()).Scan(&count)
	return err, count
}

// IsFollower reports whether followerId currently follows followingId.
func (db *DB) IsFollower(followingId uuid.UUID, followerId uuid.UUID) (error, bool) {
	var count int
	err := db.db.QueryRow(sqlSelectFollower, followingId.String(), followerId.String()).Scan(&count)
	return err, count > 0
}

// ReadFollowers returns the actors following actorId, newest edge first.
func (db *DB) ReadFollowers(actorId uuid.UUID) (error, *[]domain.Actor) {
	return db.queryActors(sqlSelectFollowers, actorId.String())
}

// ReadFollowing returns the actors actorId follows, newest edge first.
func (db *DB) ReadFollowing(actorId uuid.UUID) (error, *[]domain.Actor) {
	return db.queryActors(sqlSelectFollowing, actorId.String())
}

func (db *DB) queryActors(query string, args ...interface{}) (error, *[]domain.Actor) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		var actor domain.Actor
		var idStr string
		var displayName, sharedInbox, profileURL, publicKey, accountId sql.NullString
		if err := rows.Scan(
			&idStr,
			&actor.URI,
			&actor.Username,
			&actor.Domain,
			&displayName,
			&actor.InboxURI,
			&sharedInbox,
			&profileURL,
			&publicKey,
			&accountId,
			&actor.CreatedAt,
			&actor.UpdatedAt,
		); err != nil {
			return err, &actors
		}
		actor.Id, _ = uuid.Parse(idStr)
		actor.DisplayName = displayName.String
		actor.SharedInboxURI = sharedInbox.String
		actor.ProfileURL = profileURL.String
		actor.PublicKeyPem = publicKey.String
		if accountId.Valid {
			accUUID, err := uuid.Parse(accountId.String)
			if err == nil {
				actor.AccountId = uuid.NullUUID{UUID: accUUID, Valid: true}
			}
		}
		actors = append(actors, actor)
	}
	if err = rows.Err(); err != nil {
		return err, &actors
	}
	return nil, &actors
}
