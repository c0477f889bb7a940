// Package engine defines the pluggable key-encapsulation and
// digital-signature capability surfaces that the handshake engine is built
// against, plus the concrete implementations (a deterministic seeded engine
// for hermetic tests, and circl-backed production engines).
package engine

import qerrors "github.com/pqcnet/tunnelcore/internal/errors"

// KEMScheme enumerates the supported key-encapsulation mechanisms. Values
// match the wire scheme tags of the handshake envelope.
type KEMScheme byte

const (
	MlKem512  KEMScheme = 1
	MlKem768  KEMScheme = 2
	MlKem1024 KEMScheme = 3
)

// String returns a human-readable KEM scheme name.
func (s KEMScheme) String() string {
	switch s {
	case MlKem512:
		return "MlKem512"
	case MlKem768:
		return "MlKem768"
	case MlKem1024:
		return "MlKem1024"
	default:
		return "Unknown"
	}
}

// IsSupported reports whether s is a recognized KEM scheme tag.
func (s KEMScheme) IsSupported() bool {
	switch s {
	case MlKem512, MlKem768, MlKem1024:
		return true
	default:
		return false
	}
}

// DSAScheme enumerates the supported signature schemes. Values match the
// wire scheme tags of the handshake envelope.
type DSAScheme byte

const (
	MlDsa2   DSAScheme = 1
	MlDsa3   DSAScheme = 2
	MlDsa5   DSAScheme = 3
	FalconL1 DSAScheme = 4
	FalconL5 DSAScheme = 5
)

// String returns a human-readable DSA scheme name.
func (s DSAScheme) String() string {
	switch s {
	case MlDsa2:
		return "MlDsa2"
	case MlDsa3:
		return "MlDsa3"
	case MlDsa5:
		return "MlDsa5"
	case FalconL1:
		return "FalconL1"
	case FalconL5:
		return "FalconL5"
	default:
		return "Unknown"
	}
}

// IsSupported reports whether s is a recognized DSA scheme tag.
func (s DSAScheme) IsSupported() bool {
	switch s {
	case MlDsa2, MlDsa3, MlDsa5, FalconL1, FalconL5:
		return true
	default:
		return false
	}
}

// KEM is the capability surface a key-encapsulation engine must expose.
// Implementations MUST run Decapsulate in constant time with respect to the
// secret key.
type KEM interface {
	Keypair() (publicKey, secretKey []byte, err error)
	Encapsulate(peerPublicKey []byte) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(secretKey, ciphertext []byte) (sharedSecret []byte, err error)
	SchemeTag() KEMScheme
	PublicKeySize() int
	CiphertextSize() int
	SharedSecretSize() int
}

// DSA is the capability surface a digital-signature engine must expose.
// Implementations MUST NOT short-circuit Verify in a timing-observable way.
type DSA interface {
	Keypair() (publicKey, secretKey []byte, err error)
	Sign(secretKey, message []byte) (signature []byte, err error)
	Verify(publicKey, message, signature []byte) bool
	SchemeTag() DSAScheme
	PublicKeySize() int
}

// NewKEM returns a production KEM engine for the requested scheme.
func NewKEM(scheme KEMScheme) (KEM, error) {
	switch scheme {
	case MlKem512:
		return newCirclKEM512(), nil
	case MlKem768:
		return newCirclKEM768(), nil
	case MlKem1024:
		return newCirclKEM1024(), nil
	default:
		return nil, qerrors.ErrUnknownScheme
	}
}

// NewDSA returns a production DSA engine for the requested scheme.
func NewDSA(scheme DSAScheme) (DSA, error) {
	return newCirclDSA(scheme)
}
