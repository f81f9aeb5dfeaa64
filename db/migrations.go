package db

import (
	"database/sql"
	"log"
)

const (
	// One row per federated identity; uri is the canonical key. Local
	// actors carry their account id, remote actors leave it NULL.
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		display_name TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT,
		profile_url TEXT,
		public_key_pem TEXT,
		account_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_actors_uri ON actors(uri);
		CREATE INDEX IF NOT EXISTS idx_actors_domain ON actors(domain);
		CREATE INDEX IF NOT EXISTS idx_actors_account_id ON actors(account_id);
	`

	// Follow edges: follower_id follows following_id
	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		following_id TEXT NOT NULL,
		follower_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(following_id, follower_id)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_following_id ON follows(following_id);
		CREATE INDEX IF NOT EXISTS idx_follows_follower_id ON follows(follower_id);
	`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		content TEXT NOT NULL,
		uri TEXT UNIQUE,
		url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_actor_id ON posts(actor_id);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	`

	sqlCreateMentionsTable = `CREATE TABLE IF NOT EXISTS mentions (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		UNIQUE(post_id, actor_id)
	)`

	sqlCreateMentionsIndices = `
		CREATE INDEX IF NOT EXISTS idx_mentions_post_id ON mentions(post_id);
		CREATE INDEX IF NOT EXISTS idx_mentions_actor_id ON mentions(actor_id);
	`

	sqlCreateNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		post_id TEXT,
		from_actor_id TEXT,
		message TEXT,
		read INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateNotificationsIndices = `
		CREATE INDEX IF NOT EXISTS idx_notifications_actor_id ON notifications(actor_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(actor_id, read);
		CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at DESC);
	`

	sqlCreateKeypairsTable = `CREATE TABLE IF NOT EXISTS keypairs (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		public_pem TEXT NOT NULL,
		private_pem TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, algorithm)
	)`

	sqlCreateKeypairsIndices = `
		CREATE INDEX IF NOT EXISTS idx_keypairs_account_id ON keypairs(account_id);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateAccountsTable); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateActorsTable, "actors"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateFollowsTable, "follows"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreatePostsTable, "posts"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateMentionsTable, "mentions"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateNotificationsTable, "notifications"); err != nil {
			return err
		}
		if err := db.createTableIfNotExists(tx, sqlCreateKeypairsTable, "keypairs"); err != nil {
			return err
		}

		// Create indices
		if _, err := tx.Exec(sqlCreateActorsIndices); err != nil {
			log.Printf("Warning: Failed to create actors indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateFollowsIndices); err != nil {
			log.Printf("Warning: Failed to create follows indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreatePostsIndices); err != nil {
			log.Printf("Warning: Failed to create posts indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateMentionsIndices); err != nil {
			log.Printf("Warning: Failed to create mentions indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateNotificationsIndices); err != nil {
			log.Printf("Warning: Failed to create notifications indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateKeypairsIndices); err != nil {
			log.Printf("Warning: Failed to create keypairs indices: %v", err)
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	return nil
}
