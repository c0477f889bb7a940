package daghost

import (
	"time"

	bolt "go.etcd.io/bbolt"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

var (
	bucketPayloads   = []byte("edge_payloads")
	bucketSignatures = []byte("edge_signatures")
	bucketSigners    = []byte("edge_signers")
)

// BoltHost is a bbolt-backed anchor.HostStore — one bucket per concern,
// created up front so every later transaction can assume they exist.
type BoltHost struct {
	db *bolt.DB
}

// OpenBoltHost opens (creating if necessary) a bbolt database at path and
// ensures its buckets exist.
func OpenBoltHost(path string) (*BoltHost, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, qerrors.NewAnchorError("", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPayloads, bucketSignatures, bucketSigners} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, qerrors.NewAnchorError("", err)
	}
	return &BoltHost{db: db}, nil
}

// Close releases the underlying database file.
func (b *BoltHost) Close() error { return b.db.Close() }

// PutEdgePayload registers the payload an edge is expected to anchor.
func (b *BoltHost) PutEdgePayload(edgeID string, payload []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPayloads).Put([]byte(edgeID), payload)
	})
}

// GetEdgePayload implements anchor.HostStore.
func (b *BoltHost) GetEdgePayload(edgeID string) ([]byte, error) {
	var payload []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPayloads).Get([]byte(edgeID))
		if v == nil {
			return qerrors.ErrUnknownKey
		}
		payload = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// AttachPQCSignature implements anchor.HostStore.
func (b *BoltHost) AttachPQCSignature(edgeID string, signerKeyID keymanager.KeyId, signature []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSignatures).Put([]byte(edgeID), signature); err != nil {
			return err
		}
		return tx.Bucket(bucketSigners).Put([]byte(edgeID), signerKeyID[:])
	})
}

// Signature returns the signature attached to edgeID, if any.
func (b *BoltHost) Signature(edgeID string) (signature []byte, signerKeyID keymanager.KeyId, ok bool, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		sig := tx.Bucket(bucketSignatures).Get([]byte(edgeID))
		if sig == nil {
			return nil
		}
		signature = append([]byte(nil), sig...)
		ok = true
		if signer := tx.Bucket(bucketSigners).Get([]byte(edgeID)); signer != nil {
			copy(signerKeyID[:], signer)
		}
		return nil
	})
	return signature, signerKeyID, ok, err
}
