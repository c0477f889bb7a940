// Package keymanager owns the active/retired key lifecycle for both KEM
// and signing key pairs: generation, time-boxed rotation with a retirement
// grace window, and resolution of a KeyId back to usable secret material.
package keymanager

import (
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/blake2s"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/engine"
)

// KeyId is the blake2s-256 digest binding a scheme tag to a public key.
type KeyId [32]byte

// ComputeKeyId derives KeyId = blake2s_32(scheme_tag_byte || public_key_bytes).
func ComputeKeyId(schemeTag byte, publicKey []byte) KeyId {
	h, _ := blake2s.New256(nil)
	h.Write([]byte{schemeTag})
	h.Write(publicKey)
	var id KeyId
	copy(id[:], h.Sum(nil))
	return id
}

func (id KeyId) String() string { return hex.EncodeToString(id[:]) }

// ThresholdPolicy is the {t, n} policy stamped onto every key record. The
// Key Manager never validates it against an external registry — spec §9
// leaves that cross-check to the embedder.
type ThresholdPolicy struct {
	T byte
	N byte
}

// Validate rejects structurally impossible policies (t == 0, t > n).
func (p ThresholdPolicy) Validate() error {
	if p.T == 0 || p.N == 0 || p.T > p.N {
		return qerrors.ErrInvalidThreshold
	}
	return nil
}

// KEMKeyRecord is one generation of KEM key material.
type KEMKeyRecord struct {
	ID        KeyId
	Scheme    engine.KEMScheme
	PublicKey []byte
	SecretKey []byte
	Threshold ThresholdPolicy
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DSAKeyRecord is one generation of signing key material.
type DSAKeyRecord struct {
	ID        KeyId
	Scheme    engine.DSAScheme
	PublicKey []byte
	SecretKey []byte
	Threshold ThresholdPolicy
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PublicKeyRecord is the externally-visible projection of a key record —
// callers resolving a peer's public key never see its secret material.
type PublicKeyRecord struct {
	ID        KeyId
	PublicKey []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	Threshold ThresholdPolicy
}

// Config controls a Manager's rotation cadence and chosen schemes.
type Config struct {
	KEMScheme       engine.KEMScheme
	DSAScheme       engine.DSAScheme
	Threshold       ThresholdPolicy
	ActiveTTL       time.Duration
	RetirementGrace time.Duration
	Now             func() time.Time
}

// Manager generates, rotates, and resolves KEM and signing key pairs.
type Manager struct {
	mu sync.RWMutex

	kemScheme engine.KEMScheme
	dsaScheme engine.DSAScheme
	threshold ThresholdPolicy
	activeTTL time.Duration
	grace     time.Duration
	now       func() time.Time

	activeKEM   *KEMKeyRecord
	retiredKEM  map[KeyId]*KEMKeyRecord
	activeDSA   *DSAKeyRecord
	retiredDSA  map[KeyId]*DSAKeyRecord
}

// NewManager constructs a Manager and generates its first KEM and signing
// key pairs immediately.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Threshold.Validate(); err != nil {
		return nil, err
	}
	if cfg.ActiveTTL <= 0 {
		return nil, qerrors.ErrInvalidThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		kemScheme:  cfg.KEMScheme,
		dsaScheme:  cfg.DSAScheme,
		threshold:  cfg.Threshold,
		activeTTL:  cfg.ActiveTTL,
		grace:      cfg.RetirementGrace,
		now:        now,
		retiredKEM: make(map[KeyId]*KEMKeyRecord),
		retiredDSA: make(map[KeyId]*DSAKeyRecord),
	}
	if err := m.generateKEM(); err != nil {
		return nil, err
	}
	if err := m.generateDSA(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) generateKEM() error {
	eng, err := engine.NewKEM(m.kemScheme)
	if err != nil {
		return err
	}
	pub, sec, err := eng.Keypair()
	if err != nil {
		return qerrors.NewCryptoError("keymanager.generateKEM", err)
	}
	t := m.now()
	m.activeKEM = &KEMKeyRecord{
		ID:        ComputeKeyId(byte(m.kemScheme), pub),
		Scheme:    m.kemScheme,
		PublicKey: pub,
		SecretKey: sec,
		Threshold: m.threshold,
		CreatedAt: t,
		ExpiresAt: t.Add(m.activeTTL + m.grace),
	}
	return nil
}

func (m *Manager) generateDSA() error {
	eng, err := engine.NewDSA(m.dsaScheme)
	if err != nil {
		return err
	}
	pub, sec, err := eng.Keypair()
	if err != nil {
		return qerrors.NewCryptoError("keymanager.generateDSA", err)
	}
	t := m.now()
	m.activeDSA = &DSAKeyRecord{
		ID:        ComputeKeyId(byte(m.dsaScheme), pub),
		Scheme:    m.dsaScheme,
		PublicKey: pub,
		SecretKey: sec,
		Threshold: m.threshold,
		CreatedAt: t,
		ExpiresAt: t.Add(m.activeTTL + m.grace),
	}
	return nil
}

// maybeRotateKEM retires the current active KEM pair and generates a fresh
// one if it has aged past activeTTL, then purges any retired entry whose
// own expiry has passed. Caller must hold m.mu.
func (m *Manager) maybeRotateKEM() error {
	now := m.now()
	if now.Sub(m.activeKEM.CreatedAt) >= m.activeTTL {
		old := m.activeKEM
		if err := m.generateKEM(); err != nil {
			return err
		}
		m.retiredKEM[old.ID] = old
	}
	for id, rec := range m.retiredKEM {
		if now.After(rec.ExpiresAt) {
			engine.ZeroizeMultiple(rec.SecretKey)
			delete(m.retiredKEM, id)
		}
	}
	return nil
}

func (m *Manager) maybeRotateDSA() error {
	now := m.now()
	if now.Sub(m.activeDSA.CreatedAt) >= m.activeTTL {
		old := m.activeDSA
		if err := m.generateDSA(); err != nil {
			return err
		}
		m.retiredDSA[old.ID] = old
	}
	for id, rec := range m.retiredDSA {
		if now.After(rec.ExpiresAt) {
			engine.ZeroizeMultiple(rec.SecretKey)
			delete(m.retiredDSA, id)
		}
	}
	return nil
}

// ActiveKEM returns the currently active KEM key record and engine,
// rotating first if the active pair has aged out.
func (m *Manager) ActiveKEM() (*KEMKeyRecord, engine.KEM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.maybeRotateKEM(); err != nil {
		return nil, nil, err
	}
	eng, err := engine.NewKEM(m.activeKEM.Scheme)
	if err != nil {
		return nil, nil, err
	}
	return m.activeKEM, eng, nil
}

// ActiveSigning returns the currently active signing key record and
// engine, rotating first if the active pair has aged out.
func (m *Manager) ActiveSigning() (*DSAKeyRecord, engine.DSA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.maybeRotateDSA(); err != nil {
		return nil, nil, err
	}
	eng, err := engine.NewDSA(m.activeDSA.Scheme)
	if err != nil {
		return nil, nil, err
	}
	return m.activeDSA, eng, nil
}

// ResolveKEMSecret returns the secret key and scheme for id, whether it is
// the active pair or a still-valid retired one.
func (m *Manager) ResolveKEMSecret(id KeyId) ([]byte, engine.KEMScheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeKEM.ID == id {
		return m.activeKEM.SecretKey, m.activeKEM.Scheme, nil
	}
	if rec, ok := m.retiredKEM[id]; ok {
		if m.now().After(rec.ExpiresAt) {
			return nil, 0, qerrors.ErrExpired
		}
		return rec.SecretKey, rec.Scheme, nil
	}
	return nil, 0, qerrors.ErrUnknownKey
}

// ResolveKEMPublicKey returns the public key for id, whether it is the
// active pair or a still-valid retired one — used to place the responder's
// KEM public key on the wire alongside its KeyId.
func (m *Manager) ResolveKEMPublicKey(id KeyId) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeKEM.ID == id {
		return m.activeKEM.PublicKey, nil
	}
	if rec, ok := m.retiredKEM[id]; ok {
		if m.now().After(rec.ExpiresAt) {
			return nil, qerrors.ErrExpired
		}
		return rec.PublicKey, nil
	}
	return nil, qerrors.ErrUnknownKey
}

// ResolveSigningSecret returns the secret key and scheme for id, whether it
// is the active pair or a still-valid retired one.
func (m *Manager) ResolveSigningSecret(id KeyId) ([]byte, engine.DSAScheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeDSA.ID == id {
		return m.activeDSA.SecretKey, m.activeDSA.Scheme, nil
	}
	if rec, ok := m.retiredDSA[id]; ok {
		if m.now().After(rec.ExpiresAt) {
			return nil, 0, qerrors.ErrExpired
		}
		return rec.SecretKey, rec.Scheme, nil
	}
	return nil, 0, qerrors.ErrUnknownKey
}

// Rotate forces both the active KEM and signing pairs to retire and
// regenerate, regardless of age.
func (m *Manager) Rotate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldKEM, oldDSA := m.activeKEM, m.activeDSA
	if err := m.generateKEM(); err != nil {
		return err
	}
	if err := m.generateDSA(); err != nil {
		return err
	}
	m.retiredKEM[oldKEM.ID] = oldKEM
	m.retiredDSA[oldDSA.ID] = oldDSA
	return nil
}

// PublicKeyRecord looks up the public projection of a KEM or signing key
// by id, across both active and retired generations.
func (m *Manager) PublicKeyRecord(id KeyId) (*PublicKeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeKEM.ID == id {
		return toPublicRecord(m.activeKEM.ID, m.activeKEM.PublicKey, m.activeKEM.CreatedAt, m.activeKEM.ExpiresAt, m.activeKEM.Threshold), nil
	}
	if rec, ok := m.retiredKEM[id]; ok {
		return toPublicRecord(rec.ID, rec.PublicKey, rec.CreatedAt, rec.ExpiresAt, rec.Threshold), nil
	}
	if m.activeDSA.ID == id {
		return toPublicRecord(m.activeDSA.ID, m.activeDSA.PublicKey, m.activeDSA.CreatedAt, m.activeDSA.ExpiresAt, m.activeDSA.Threshold), nil
	}
	if rec, ok := m.retiredDSA[id]; ok {
		return toPublicRecord(rec.ID, rec.PublicKey, rec.CreatedAt, rec.ExpiresAt, rec.Threshold), nil
	}
	return nil, qerrors.ErrUnknownKey
}

func toPublicRecord(id KeyId, pub []byte, created, expires time.Time, policy ThresholdPolicy) *PublicKeyRecord {
	return &PublicKeyRecord{ID: id, PublicKey: pub, CreatedAt: created, ExpiresAt: expires, Threshold: policy}
}
