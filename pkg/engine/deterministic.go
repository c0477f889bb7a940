// deterministic.go provides seeded engines that produce byte-identical
// keypairs, ciphertexts, and signatures across runs given the same 32-byte
// seed. Production code never uses these; tests use them to get hermetic,
// reproducible end-to-end scenarios without depending on system entropy.
package engine

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/blake2s"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

func blake2sSum(b []byte) []byte {
	sum := blake2s.Sum256(b)
	return sum[:]
}

// deterministicKEM512 generates keypairs and encapsulation seeds from a
// fixed 32-byte seed instead of Reader.
type deterministicKEM512 struct {
	seed []byte
}

// NewDeterministicKEM returns a seeded KEM engine for scheme. seed must be
// exactly 32 bytes.
func NewDeterministicKEM(scheme KEMScheme, seed []byte) (KEM, error) {
	if len(seed) != 32 {
		return nil, qerrors.ErrInvalidKeySize
	}
	switch scheme {
	case MlKem512:
		return &deterministicKEM512{seed: seed}, nil
	case MlKem768:
		return &deterministicKEM768{seed: seed}, nil
	case MlKem1024:
		return &deterministicKEM1024{seed: seed}, nil
	default:
		return nil, qerrors.ErrUnknownScheme
	}
}

func (k *deterministicKEM512) SchemeTag() KEMScheme  { return MlKem512 }
func (k *deterministicKEM512) PublicKeySize() int    { return mlkem512.PublicKeySize }
func (k *deterministicKEM512) CiphertextSize() int   { return mlkem512.CiphertextSize }
func (k *deterministicKEM512) SharedSecretSize() int { return mlkem512.SharedKeySize }

func (k *deterministicKEM512) Keypair() (pub, sec []byte, err error) {
	pk, sk, err := mlkem512.GenerateKeyPair(newDeterministicReader(k.seed))
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("deterministicKEM512.Keypair", err)
	}
	pub = make([]byte, mlkem512.PublicKeySize)
	pk.Pack(pub)
	sec = make([]byte, mlkem512.PrivateKeySize)
	sk.Pack(sec)
	return pub, sec, nil
}

func (k *deterministicKEM512) Encapsulate(peerPublic []byte) (ciphertext, sharedSecret []byte, err error) {
	pk := new(mlkem512.PublicKey)
	if err := pk.Unpack(peerPublic); err != nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	seed := make([]byte, mlkem512.EncapsulationSeedSize)
	copy(seed, blake2sSum(append([]byte("pqcnet-det-encap"), k.seed...)))
	ct := make([]byte, mlkem512.CiphertextSize)
	ss := make([]byte, mlkem512.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

func (k *deterministicKEM512) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	sk := new(mlkem512.PrivateKey)
	if err := sk.Unpack(secretKey); err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	ss := make([]byte, mlkem512.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

type deterministicKEM768 struct{ seed []byte }

func (k *deterministicKEM768) SchemeTag() KEMScheme  { return MlKem768 }
func (k *deterministicKEM768) PublicKeySize() int    { return mlkem768.PublicKeySize }
func (k *deterministicKEM768) CiphertextSize() int   { return mlkem768.CiphertextSize }
func (k *deterministicKEM768) SharedSecretSize() int { return mlkem768.SharedKeySize }

func (k *deterministicKEM768) Keypair() (pub, sec []byte, err error) {
	pk, sk, err := mlkem768.GenerateKeyPair(newDeterministicReader(k.seed))
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("deterministicKEM768.Keypair", err)
	}
	pub = make([]byte, mlkem768.PublicKeySize)
	pk.Pack(pub)
	sec = make([]byte, mlkem768.PrivateKeySize)
	sk.Pack(sec)
	return pub, sec, nil
}

func (k *deterministicKEM768) Encapsulate(peerPublic []byte) (ciphertext, sharedSecret []byte, err error) {
	pk := new(mlkem768.PublicKey)
	if err := pk.Unpack(peerPublic); err != nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	seed := make([]byte, mlkem768.EncapsulationSeedSize)
	copy(seed, blake2sSum(append([]byte("pqcnet-det-encap"), k.seed...)))
	ct := make([]byte, mlkem768.CiphertextSize)
	ss := make([]byte, mlkem768.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

func (k *deterministicKEM768) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	sk := new(mlkem768.PrivateKey)
	if err := sk.Unpack(secretKey); err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	ss := make([]byte, mlkem768.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

type deterministicKEM1024 struct{ seed []byte }

func (k *deterministicKEM1024) SchemeTag() KEMScheme  { return MlKem1024 }
func (k *deterministicKEM1024) PublicKeySize() int    { return mlkem1024.PublicKeySize }
func (k *deterministicKEM1024) CiphertextSize() int   { return mlkem1024.CiphertextSize }
func (k *deterministicKEM1024) SharedSecretSize() int { return mlkem1024.SharedKeySize }

func (k *deterministicKEM1024) Keypair() (pub, sec []byte, err error) {
	pk, sk, err := mlkem1024.GenerateKeyPair(newDeterministicReader(k.seed))
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("deterministicKEM1024.Keypair", err)
	}
	pub = make([]byte, mlkem1024.PublicKeySize)
	pk.Pack(pub)
	sec = make([]byte, mlkem1024.PrivateKeySize)
	sk.Pack(sec)
	return pub, sec, nil
}

func (k *deterministicKEM1024) Encapsulate(peerPublic []byte) (ciphertext, sharedSecret []byte, err error) {
	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(peerPublic); err != nil {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	copy(seed, blake2sSum(append([]byte("pqcnet-det-encap"), k.seed...)))
	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

func (k *deterministicKEM1024) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	sk := new(mlkem1024.PrivateKey)
	if err := sk.Unpack(secretKey); err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	ss := make([]byte, mlkem1024.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// deterministicDSA wraps a production DSA engine but drives Keypair from a
// seeded reader instead of system entropy.
type deterministicDSA struct {
	DSA
	seed []byte
}

// NewDeterministicDSA returns a seeded DSA engine for scheme. seed must be
// exactly 32 bytes.
func NewDeterministicDSA(scheme DSAScheme, seed []byte) (DSA, error) {
	if len(seed) != 32 {
		return nil, qerrors.ErrInvalidKeySize
	}
	inner, err := newCirclDSA(scheme)
	if err != nil {
		return nil, err
	}
	return &deterministicDSA{DSA: inner, seed: seed}, nil
}

func (d *deterministicDSA) Keypair() (publicKey, secretKey []byte, err error) {
	return deterministicDSAKeypair(d.DSA.SchemeTag(), d.seed)
}
