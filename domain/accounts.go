package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

type Account struct {
	Id        uuid.UUID
	Username  string
	CreatedAt time.Time
}

func (acc *Account) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tCreatedAt: %s", acc.Id, acc.Username, acc.CreatedAt)
}

// KeyAlgorithm tags one of the two keypairs every local account carries.
type KeyAlgorithm string

const (
	KeyAlgRsa     KeyAlgorithm = "rsa"
	KeyAlgEd25519 KeyAlgorithm = "ed25519"
)

// KeyAlgorithms is the fixed algorithm order; actor documents list the
// primary signing key (RSA) first.
var KeyAlgorithms = []KeyAlgorithm{KeyAlgRsa, KeyAlgEd25519}

// KeyPair holds one PEM-encoded keypair of an account.
type KeyPair struct {
	Id         uuid.UUID
	AccountId  uuid.UUID
	Algorithm  KeyAlgorithm
	PublicPem  string
	PrivatePem string
	CreatedAt  time.Time
}
