package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/domain"
)

// Keypair queries
const (
	// A concurrent first access may race on (account, algorithm); the
	// loser's insert is ignored and the stored pair is read back.
	sqlInsertKeyPair = `INSERT INTO keypairs(id, account_id, algorithm, public_pem, private_pem, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, algorithm) DO NOTHING`
	sqlSelectKeyPair = `SELECT id, account_id, algorithm, public_pem, private_pem, created_at FROM keypairs
		WHERE account_id = ? AND algorithm = ?`
)

func (db *DB) CreateKeyPair(kp *domain.KeyPair) error {
	if kp.Id == uuid.Nil {
		kp.Id = uuid.New()
	}
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertKeyPair,
			kp.Id.String(),
			kp.AccountId.String(),
			string(kp.Algorithm),
			kp.PublicPem,
			kp.PrivatePem,
			kp.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadKeyPair(accountId uuid.UUID, algorithm domain.KeyAlgorithm) (error, *domain.KeyPair) {
	row := db.db.QueryRow(sqlSelectKeyPair, accountId.String(), string(algorithm))
	var kp domain.KeyPair
	var idStr, accountIdStr, algStr string
	err := row.Scan(&idStr, &accountIdStr, &algStr, &kp.PublicPem, &kp.PrivatePem, &kp.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	kp.Id, _ = uuid.Parse(idStr)
	kp.AccountId, _ = uuid.Parse(accountIdStr)
	kp.Algorithm = domain.KeyAlgorithm(algStr)
	return nil, &kp
}
