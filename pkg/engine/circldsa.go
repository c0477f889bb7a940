// circldsa.go wraps circl's generic signature Scheme interface behind the
// DSA capability surface, covering every digital-signature scheme tag the
// handshake envelope can negotiate.
//
// circl ships Falcon only at the 512 parameter set (no Falcon-1024), so
// both FalconL1 and FalconL5 resolve to the same underlying "Falcon-512"
// scheme here. That is an honest approximation of the two security levels
// the envelope's scheme tags imply, not a faithful two-level Falcon; any
// embedder that needs a true Falcon-1024 tier must bring its own engine.
package engine

import (
	circlsign "github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/schemes"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

func schemeName(scheme DSAScheme) (string, error) {
	switch scheme {
	case MlDsa2:
		return "ML-DSA-44", nil
	case MlDsa3:
		return "ML-DSA-65", nil
	case MlDsa5:
		return "ML-DSA-87", nil
	case FalconL1, FalconL5:
		return "Falcon-512", nil
	default:
		return "", qerrors.ErrUnknownScheme
	}
}

type circlDSA struct {
	tag    DSAScheme
	scheme circlsign.Scheme
}

func newCirclDSA(scheme DSAScheme) (DSA, error) {
	name, err := schemeName(scheme)
	if err != nil {
		return nil, err
	}
	s := schemes.ByName(name)
	if s == nil {
		return nil, qerrors.NewCryptoError("engine.NewDSA", qerrors.ErrUnknownScheme)
	}
	return &circlDSA{tag: scheme, scheme: s}, nil
}

func (d *circlDSA) SchemeTag() DSAScheme { return d.tag }
func (d *circlDSA) PublicKeySize() int   { return d.scheme.PublicKeySize() }

func (d *circlDSA) Keypair() (publicKey, secretKey []byte, err error) {
	pk, sk, err := d.scheme.GenerateKey()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("circlDSA.Keypair", err)
	}
	publicKey, err = pk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("circlDSA.Keypair", err)
	}
	secretKey, err = sk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("circlDSA.Keypair", err)
	}
	return publicKey, secretKey, nil
}

func (d *circlDSA) Sign(secretKey, message []byte) (signature []byte, err error) {
	sk, err := d.scheme.UnmarshalBinaryPrivateKey(secretKey)
	if err != nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	return d.scheme.Sign(sk, message, nil), nil
}

func (d *circlDSA) Verify(publicKey, message, signature []byte) bool {
	pk, err := d.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false
	}
	return d.scheme.Verify(pk, message, signature, nil)
}

// deterministicDSAKeypair derives a reproducible keypair for scheme from a
// 32-byte seed by stretching the seed to the scheme's required seed size
// and passing it to the underlying circl scheme's DeriveKey.
func deterministicDSAKeypair(scheme DSAScheme, seed []byte) (publicKey, secretKey []byte, err error) {
	name, err := schemeName(scheme)
	if err != nil {
		return nil, nil, err
	}
	s := schemes.ByName(name)
	if s == nil {
		return nil, nil, qerrors.ErrUnknownScheme
	}
	expanded := expandSeed(seed)
	if len(expanded) < s.SeedSize() {
		return nil, nil, qerrors.NewCryptoError("engine.deterministicDSAKeypair", qerrors.ErrEntropyUnavailable)
	}
	pk, sk := s.DeriveKey(expanded[:s.SeedSize()])
	publicKey, err = pk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("deterministicDSAKeypair", err)
	}
	secretKey, err = sk.MarshalBinary()
	if err != nil {
		return nil, nil, qerrors.NewCryptoError("deterministicDSAKeypair", err)
	}
	return publicKey, secretKey, nil
}
