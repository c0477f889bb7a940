// circlkem.go wraps circl's ML-KEM implementations (NIST FIPS 203) behind
// the KEM capability surface, generalizing the single fixed ML-KEM-1024
// choice into the three scheme levels the handshake envelope can negotiate.
package engine

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

// circlKEM512 wraps mlkem512.
type circlKEM512 struct{}

func newCirclKEM512() *circlKEM512 { return &circlKEM512{} }

func (k *circlKEM512) SchemeTag() KEMScheme    { return MlKem512 }
func (k *circlKEM512) PublicKeySize() int      { return mlkem512.PublicKeySize }
func (k *circlKEM512) CiphertextSize() int     { return mlkem512.CiphertextSize }
func (k *circlKEM512) SharedSecretSize() int   { return mlkem512.SharedKeySize }

func (k *circlKEM512) Keypair() (pub, sec []byte, err error) {
	pk, sk, err := mlkem512.GenerateKeyPair(Reader)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM512.Keypair", err)
	}
	pub = make([]byte, mlkem512.PublicKeySize)
	pk.Pack(pub)
	sec = make([]byte, mlkem512.PrivateKeySize)
	sk.Pack(sec)
	return pub, sec, nil
}

func (k *circlKEM512) Encapsulate(peerPublic []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(peerPublic) != mlkem512.PublicKeySize {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	pk := new(mlkem512.PublicKey)
	if err := pk.Unpack(peerPublic); err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM512.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	seed := make([]byte, mlkem512.EncapsulationSeedSize)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM512.Encapsulate", err)
	}
	ct := make([]byte, mlkem512.CiphertextSize)
	ss := make([]byte, mlkem512.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

func (k *circlKEM512) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(secretKey) != mlkem512.PrivateKeySize {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != mlkem512.CiphertextSize {
		return nil, qerrors.ErrInvalidCiphertext
	}
	sk := new(mlkem512.PrivateKey)
	if err := sk.Unpack(secretKey); err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	ss := make([]byte, mlkem512.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// circlKEM768 wraps mlkem768.
type circlKEM768 struct{}

func newCirclKEM768() *circlKEM768 { return &circlKEM768{} }

func (k *circlKEM768) SchemeTag() KEMScheme  { return MlKem768 }
func (k *circlKEM768) PublicKeySize() int    { return mlkem768.PublicKeySize }
func (k *circlKEM768) CiphertextSize() int   { return mlkem768.CiphertextSize }
func (k *circlKEM768) SharedSecretSize() int { return mlkem768.SharedKeySize }

func (k *circlKEM768) Keypair() (pub, sec []byte, err error) {
	pk, sk, err := mlkem768.GenerateKeyPair(Reader)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM768.Keypair", err)
	}
	pub = make([]byte, mlkem768.PublicKeySize)
	pk.Pack(pub)
	sec = make([]byte, mlkem768.PrivateKeySize)
	sk.Pack(sec)
	return pub, sec, nil
}

func (k *circlKEM768) Encapsulate(peerPublic []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(peerPublic) != mlkem768.PublicKeySize {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	pk := new(mlkem768.PublicKey)
	if err := pk.Unpack(peerPublic); err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM768.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	seed := make([]byte, mlkem768.EncapsulationSeedSize)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM768.Encapsulate", err)
	}
	ct := make([]byte, mlkem768.CiphertextSize)
	ss := make([]byte, mlkem768.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

func (k *circlKEM768) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(secretKey) != mlkem768.PrivateKeySize {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != mlkem768.CiphertextSize {
		return nil, qerrors.ErrInvalidCiphertext
	}
	sk := new(mlkem768.PrivateKey)
	if err := sk.Unpack(secretKey); err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	ss := make([]byte, mlkem768.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// circlKEM1024 wraps mlkem1024, the highest of the three selectable levels.
type circlKEM1024 struct{}

func newCirclKEM1024() *circlKEM1024 { return &circlKEM1024{} }

func (k *circlKEM1024) SchemeTag() KEMScheme  { return MlKem1024 }
func (k *circlKEM1024) PublicKeySize() int    { return mlkem1024.PublicKeySize }
func (k *circlKEM1024) CiphertextSize() int   { return mlkem1024.CiphertextSize }
func (k *circlKEM1024) SharedSecretSize() int { return mlkem1024.SharedKeySize }

func (k *circlKEM1024) Keypair() (pub, sec []byte, err error) {
	pk, sk, err := mlkem1024.GenerateKeyPair(Reader)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM1024.Keypair", err)
	}
	pub = make([]byte, mlkem1024.PublicKeySize)
	pk.Pack(pub)
	sec = make([]byte, mlkem1024.PrivateKeySize)
	sk.Pack(sec)
	return pub, sec, nil
}

func (k *circlKEM1024) Encapsulate(peerPublic []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(peerPublic) != mlkem1024.PublicKeySize {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	pk := new(mlkem1024.PublicKey)
	if err := pk.Unpack(peerPublic); err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM1024.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	seed := make([]byte, mlkem1024.EncapsulationSeedSize)
	if err := SecureRandom(seed); err != nil {
		return nil, nil, qerrors.NewCryptoError("circlKEM1024.Encapsulate", err)
	}
	ct := make([]byte, mlkem1024.CiphertextSize)
	ss := make([]byte, mlkem1024.SharedKeySize)
	pk.EncapsulateTo(ct, ss, seed)
	return ct, ss, nil
}

func (k *circlKEM1024) Decapsulate(secretKey, ciphertext []byte) ([]byte, error) {
	if len(secretKey) != mlkem1024.PrivateKeySize {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != mlkem1024.CiphertextSize {
		return nil, qerrors.ErrInvalidCiphertext
	}
	sk := new(mlkem1024.PrivateKey)
	if err := sk.Unpack(secretKey); err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	ss := make([]byte, mlkem1024.SharedKeySize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}
