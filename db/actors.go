package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// Actor queries
const (
	sqlActorColumns = `id, uri, username, domain, display_name, inbox_uri, shared_inbox_uri, profile_url, public_key_pem, account_id, created_at, updated_at`

	// Insert-or-update keyed by uri; the incoming descriptor wins on every
	// mutable column (last-write-wins, no merge logic).
	sqlUpsertActor = `INSERT INTO actors(id, uri, username, domain, display_name, inbox_uri, shared_inbox_uri, profile_url, public_key_pem, account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			username = excluded.username,
			domain = excluded.domain,
			display_name = excluded.display_name,
			inbox_uri = excluded.inbox_uri,
			shared_inbox_uri = excluded.shared_inbox_uri,
			profile_url = excluded.profile_url,
			public_key_pem = excluded.public_key_pem,
			updated_at = excluded.updated_at`

	sqlSelectActorByURI      = `SELECT ` + sqlActorColumns + ` FROM actors WHERE uri = ?`
	sqlSelectActorById       = `SELECT ` + sqlActorColumns + ` FROM actors WHERE id = ?`
	sqlSelectActorByHandle   = `SELECT ` + sqlActorColumns + ` FROM actors WHERE username = ? AND domain = ?`
	sqlSelectActorByUsername = `SELECT ` + sqlActorColumns + ` FROM actors WHERE username = ? AND account_id IS NOT NULL`
	sqlSelectActorByAccount  = `SELECT ` + sqlActorColumns + ` FROM actors WHERE account_id = ?`

	sqlUpdateActorDisplayName = `UPDATE actors SET display_name = ?, updated_at = ? WHERE uri = ?`
)

// UpsertActor writes the actor keyed by its URI and re-reads the canonical
// row, so the returned id is stable across repeated upserts.
func (db *DB) UpsertActor(actor *domain.Actor) (error, *domain.Actor) {
	if actor.Id == uuid.Nil {
		actor.Id = uuid.New()
	}
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = time.Now()
	}
	actor.UpdatedAt = time.Now()

	var accountId interface{}
	if actor.AccountId.Valid {
		accountId = actor.AccountId.UUID.String()
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertActor,
			actor.Id.String(),
			actor.URI,
			actor.Username,
			actor.Domain,
			actor.DisplayName,
			actor.InboxURI,
			actor.SharedInboxURI,
			actor.ProfileURL,
			actor.PublicKeyPem,
			accountId,
			actor.CreatedAt,
			actor.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return err, nil
	}

	return db.ReadActorByURI(actor.URI)
}

func (db *DB) ReadActorByURI(uri string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByURI, uri))
}

func (db *DB) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorById, id.String()))
}

func (db *DB) ReadActorByHandle(username string, domainName string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByHandle, username, domainName))
}

// ReadLocalActorByUsername returns the actor of a local account.
func (db *DB) ReadLocalActorByUsername(username string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByUsername, username))
}

func (db *DB) ReadActorByAccountId(accountId uuid.UUID) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByAccount, accountId.String()))
}

// UpdateActorDisplayName overwrites the display name of an existing actor
// and bumps updated_at. Unknown URIs are left untouched.
func (db *DB) UpdateActorDisplayName(uri string, displayName string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateActorDisplayName, displayName, time.Now(), uri)
		return err
	})
}

func (db *DB) scanActor(row *sql.Row) (error, *domain.Actor) {
	var actor domain.Actor
	var idStr string
	var displayName, sharedInbox, profileURL, publicKey, accountId sql.NullString
	err := row.Scan(
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
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
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
	return nil, &actor
}
