package activitypub

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"

	"github.com/google/uuid"
	"github.com/loxodon-dev/loxodon/db"
	"github.com/loxodon-dev/loxodon/domain"
)

const rsaKeyBits = 2048

// GetOrCreateKeyPairs returns the account's keypairs in the fixed algorithm
// order (RSA first, then Ed25519), generating and persisting any pair that
// does not exist yet. Any generation or persistence failure is returned;
// an actor document cannot be produced without its keys.
func GetOrCreateKeyPairs(database *db.DB, accountId uuid.UUID) ([]domain.KeyPair, error) {
	pairs := make([]domain.KeyPair, 0, len(domain.KeyAlgorithms))
	for _, alg := range domain.KeyAlgorithms {
		err, kp := database.ReadKeyPair(accountId, alg)
		if err == sql.ErrNoRows {
			kp, err = generateKeyPair(accountId, alg)
			if err != nil {
				return nil, fmt.Errorf("failed to generate %s keypair: %w", alg, err)
			}
			if err := database.CreateKeyPair(kp); err != nil {
				return nil, fmt.Errorf("failed to store %s keypair: %w", alg, err)
			}
			// A concurrent request may have won the insert; the stored
			// row is canonical either way.
			err, kp = database.ReadKeyPair(accountId, alg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s keypair: %w", alg, err)
		}
		pairs = append(pairs, *kp)
	}
	return pairs, nil
}

func generateKeyPair(accountId uuid.UUID, alg domain.KeyAlgorithm) (*domain.KeyPair, error) {
	switch alg {
	case domain.KeyAlgRsa:
		return generateRsaKeyPair(accountId)
	case domain.KeyAlgEd25519:
		return generateEd25519KeyPair(accountId)
	default:
		return nil, fmt.Errorf("unknown key algorithm: %s", alg)
	}
}

func generateRsaKeyPair(accountId uuid.UUID) (*domain.KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, err
	}

	privPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	pubPem := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return &domain.KeyPair{
		Id:         uuid.New(),
		AccountId:  accountId,
		Algorithm:  domain.KeyAlgRsa,
		PublicPem:  string(pubPem),
		PrivatePem: string(privPem),
	}, nil
}

func generateEd25519KeyPair(accountId uuid.UUID) (*domain.KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	privPem := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privBytes,
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	pubPem := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return &domain.KeyPair{
		Id:         uuid.New(),
		AccountId:  accountId,
		Algorithm:  domain.KeyAlgEd25519,
		PublicPem:  string(pubPem),
		PrivatePem: string(privPem),
	}, nil
}
