package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// Mention and notification queries
const (
	sqlInsertMention = `INSERT INTO mentions(id, post_id, actor_id) VALUES (?, ?, ?)
		ON CONFLICT(post_id, actor_id) DO NOTHING`

	sqlInsertNotification = `INSERT INTO notifications(id, actor_id, kind, post_id, from_actor_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqlCountMentionNotifications = `SELECT COUNT(*) FROM notifications
		WHERE actor_id = ? AND kind = ? AND post_id = ? AND from_actor_id = ?`

	sqlSelectNotificationsByActorId = `SELECT id, actor_id, kind, post_id, from_actor_id, message, read, created_at FROM notifications
		WHERE actor_id = ?
		ORDER BY created_at DESC`

	sqlCountUnreadNotifications = `SELECT COUNT(*) FROM notifications WHERE actor_id = ? AND read = 0`

	// Every mutation is scoped to the recipient so one actor can never
	// touch another actor's notifications.
	sqlMarkNotificationRead     = `UPDATE notifications SET read = 1 WHERE id = ? AND actor_id = ?`
	sqlMarkAllNotificationsRead = `UPDATE notifications SET read = 1 WHERE actor_id = ?`
	sqlDeleteNotification       = `DELETE FROM notifications WHERE id = ? AND actor_id = ?`
	sqlDeleteAllNotifications   = `DELETE FROM notifications WHERE actor_id = ?`
)

// CreateMention records that the post mentions the actor. Returns whether a
// new row was written; duplicates are no-ops.
func (db *DB) CreateMention(postId uuid.UUID, actorId uuid.UUID) (error, bool) {
	inserted := false
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertMention, uuid.New().String(), postId.String(), actorId.String())
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

func (db *DB) CreateNotification(n *domain.Notification) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	var postId, fromActorId interface{}
	if n.PostId.Valid {
		postId = n.PostId.UUID.String()
	}
	if n.FromActorId.Valid {
		fromActorId = n.FromActorId.UUID.String()
	}

	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNotification,
			n.Id.String(),
			n.ActorId.String(),
			n.Kind,
			postId,
			fromActorId,
			n.Message,
			n.Read,
			n.CreatedAt,
		)
		return err
	})
}

// HasMentionNotification reports whether the recipient already holds a
// mention notification for this exact (post, author) pair.
func (db *DB) HasMentionNotification(recipientId uuid.UUID, postId uuid.UUID, fromActorId uuid.UUID) (error, bool) {
	var count int
	err := db.db.QueryRow(sqlCountMentionNotifications,
		recipientId.String(), domain.NotificationMention, postId.String(), fromActorId.String()).Scan(&count)
	return err, count > 0
}

func (db *DB) ReadNotificationsByActorId(actorId uuid.UUID) (error, *[]domain.Notification) {
	rows, err := db.db.Query(sqlSelectNotificationsByActorId, actorId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var idStr, actorIdStr string
		var postId, fromActorId sql.NullString
		if err := rows.Scan(&idStr, &actorIdStr, &n.Kind, &postId, &fromActorId, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return err, &notifications
		}
		n.Id, _ = uuid.Parse(idStr)
		n.ActorId, _ = uuid.Parse(actorIdStr)
		if postId.Valid {
			id, err := uuid.Parse(postId.String)
			if err == nil {
				n.PostId = uuid.NullUUID{UUID: id, Valid: true}
			}
		}
		if fromActorId.Valid {
			id, err := uuid.Parse(fromActorId.String)
			if err == nil {
				n.FromActorId = uuid.NullUUID{UUID: id, Valid: true}
			}
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return err, &notifications
	}
	return nil, &notifications
}

func (db *DB) CountUnreadNotifications(actorId uuid.UUID) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountUnreadNotifications, actorId.String()).Scan(&count)
	return err, count
}

func (db *DB) MarkNotificationRead(id uuid.UUID, recipientId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlMarkNotificationRead, id.String(), recipientId.String())
		return err
	})
}

func (db *DB) MarkAllNotificationsRead(recipientId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlMarkAllNotificationsRead, recipientId.String())
		return err
	})
}

func (db *DB) DeleteNotification(id uuid.UUID, recipientId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteNotification, id.String(), recipientId.String())
		return err
	})
}

func (db *DB) DeleteAllNotifications(recipientId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteAllNotifications, recipientId.String())
		return err
	})
}
