package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// Post queries
const (
	sqlInsertPost      = `INSERT INTO posts(id, actor_id, content, uri, url, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlBackfillPostURI = `UPDATE posts SET uri = ?, url = ? WHERE id = ?`

	// Federated posts are keyed by the remote object URI; redelivery of the
	// same Create must not produce a second row.
	sqlInsertFederatedPost = `INSERT INTO posts(id, actor_id, content, uri, url, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO NOTHING`

	sqlSelectPostById  = `SELECT id, actor_id, content, uri, url, created_at FROM posts WHERE id = ?`
	sqlSelectPostByURI = `SELECT id, actor_id, content, uri, url, created_at FROM posts WHERE uri = ?`

	sqlSelectPostsByActorId = `SELECT id, actor_id, content, uri, url, created_at FROM posts
		WHERE actor_id = ?
		ORDER BY created_at DESC`

	sqlSelectLocalPosts = `SELECT posts.id, posts.actor_id, posts.content, posts.uri, posts.url, posts.created_at FROM posts
		INNER JOIN actors ON actors.id = posts.actor_id
		WHERE actors.account_id IS NOT NULL
		ORDER BY posts.created_at DESC`
)

// CreateLocalPost inserts the post and backfills its canonical URI once the
// row id is known, inside one transaction.
func (db *DB) CreateLocalPost(post *domain.Post, buildURI func(id uuid.UUID) string) error {
	if post.Id == uuid.Nil {
		post.Id = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPost,
			post.Id.String(),
			post.ActorId.String(),
			post.Content,
			nil,
			nil,
			post.CreatedAt,
		)
		if err != nil {
			return err
		}
		post.URI = buildURI(post.Id)
		if post.URL == "" {
			post.URL = post.URI
		}
		_, err = tx.Exec(sqlBackfillPostURI, post.URI, post.URL, post.Id.String())
		return err
	})
}

// CreateFederatedPost stores a remote post keyed by its own object URI.
// A URI conflict is a no-op.
func (db *DB) CreateFederatedPost(post *domain.Post) error {
	if post.Id == uuid.Nil {
		post.Id = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFederatedPost,
			post.Id.String(),
			post.ActorId.String(),
			post.Content,
			post.URI,
			post.URL,
			post.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	return db.scanPost(db.db.QueryRow(sqlSelectPostById, id.String()))
}

func (db *DB) ReadPostByURI(uri string) (error, *domain.Post) {
	return db.scanPost(db.db.QueryRow(sqlSelectPostByURI, uri))
}

func (db *DB) ReadPostsByActorId(actorId uuid.UUID) (error, *[]domain.Post) {
	return db.queryPosts(sqlSelectPostsByActorId, actorId.String())
}

// ReadLocalPosts returns every post authored by a local actor, newest first.
func (db *DB) ReadLocalPosts() (error, *[]domain.Post) {
	return db.queryPosts(sqlSelectLocalPosts)
}

func (db *DB) scanPost(row *sql.Row) (error, *domain.Post) {
	var post domain.Post
	var idStr, actorIdStr string
	var urival, urlval sql.NullString
	err := row.Scan(&idStr, &actorIdStr, &post.Content, &urival, &urlval, &post.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	post.Id, _ = uuid.Parse(idStr)
	post.ActorId, _ = uuid.Parse(actorIdStr)
	post.URI = urival.String
	post.URL = urlval.String
	return nil, &post
}

func (db *DB) queryPosts(query string, args ...interface{}) (error, *[]domain.Post) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		var idStr, actorIdStr string
		var urival, urlval sql.NullString
		if err := rows.Scan(&idStr, &actorIdStr, &post.Content, &urival, &urlval, &post.CreatedAt); err != nil {
			return err, &posts
		}
		post.Id, _ = uuid.Parse(idStr)
		post.ActorId, _ = uuid.Parse(actorIdStr)
		post.URI = urival.String
		post.URL = urlval.String
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		return err, &posts
	}
	return nil, &posts
}
