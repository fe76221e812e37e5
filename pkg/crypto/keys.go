// Package crypto deals with the signed player keys introduced in Minecraft 1.19.
package crypto

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// KeyRevision is the revision of an identified key.
type KeyRevision int

const (
	// GenericV1 keys are sent by 1.19 clients.
	GenericV1 KeyRevision = iota + 1
	// LinkedV2 keys are sent by 1.19.1+ clients and
	// additionally carry the signature holder.
	LinkedV2
)

// IdentifiedKey represents the signed public key of a player
// as provided in the login start packet.
type IdentifiedKey interface {
	// Revision returns the revision of the key.
	Revision() KeyRevision
	// SignedPublicKeyBytes returns the key in ASN.1 DER form.
	SignedPublicKeyBytes() []byte
	// ExpiryTemporal returns the expiry time of the key.
	ExpiryTemporal() time.Time
	// Expired returns whether the key has expired.
	Expired() bool
	// Signature returns the Mojang signature over expiry and key.
	Signature() []byte
	// SignatureHolder returns the UUID the key is bound to,
	// or uuid.Nil for revision 1 keys.
	SignatureHolder() uuid.UUID
	// SetSignatureHolder back-fills the holder UUID once known.
	SetSignatureHolder(id uuid.UUID)
	// VerifyDataSignature verifies a signature over the given data
	// with the player's public key.
	VerifyDataSignature(signature []byte, data ...[]byte) bool
}

type identifiedKey struct {
	revision  KeyRevision
	keyBytes  []byte
	publicKey *rsa.PublicKey
	expiry    time.Time
	signature []byte
	holder    uuid.UUID
}

var _ IdentifiedKey = (*identifiedKey)(nil)

// NewIdentifiedKey creates an IdentifiedKey from its wire fields.
func NewIdentifiedKey(revision KeyRevision, keyBytes []byte, expiry int64, signature []byte) (IdentifiedKey, error) {
	key, err := x509.ParsePKIXPublicKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing player public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("player public key is no RSA key (%T)", key)
	}
	return &identifiedKey{
		revision:  revision,
		keyBytes:  keyBytes,
		publicKey: rsaKey,
		expiry:    time.UnixMilli(expiry),
		signature: signature,
	}, nil
}

func (k *identifiedKey) Revision() KeyRevision         { return k.revision }
func (k *identifiedKey) SignedPublicKeyBytes() []byte  { return k.keyBytes }
func (k *identifiedKey) ExpiryTemporal() time.Time     { return k.expiry }
func (k *identifiedKey) Expired() bool                 { return time.Now().After(k.expiry) }
func (k *identifiedKey) Signature() []byte             { return k.signature }
func (k *identifiedKey) SignatureHolder() uuid.UUID    { return k.holder }
func (k *identifiedKey) SetSignatureHolder(i uuid.UUID) { k.holder = i }

func (k *identifiedKey) VerifyDataSignature(signature []byte, data ...[]byte) bool {
	hash := sha256.New()
	for _, d := range data {
		_, _ = hash.Write(d)
	}
	return rsa.VerifyPKCS1v15(k.publicKey, crypto.SHA256, hash.Sum(nil), signature) == nil
}

// RevisionForProtocol returns the key revision clients of the
// given protocol version send.
func RevisionForProtocol(protocol proto.Protocol) KeyRevision {
	if protocol.GreaterEqual(version.Minecraft_1_19_1) {
		return LinkedV2
	}
	return GenericV1
}

// ReadPlayerKey reads an identified key from the reader.
func ReadPlayerKey(protocol proto.Protocol, rd io.Reader) (IdentifiedKey, error) {
	expiry, err := util.ReadInt64(rd)
	if err != nil {
		return nil, err
	}
	keyBytes, err := util.ReadBytesLen(rd, 512)
	if err != nil {
		return nil, err
	}
	signature, err := util.ReadBytesLen(rd, 4096)
	if err != nil {
		return nil, err
	}
	return NewIdentifiedKey(RevisionForProtocol(protocol), keyBytes, expiry, signature)
}

// WritePlayerKey writes an identified key to the writer.
func WritePlayerKey(wr io.Writer, key IdentifiedKey) error {
	err := util.WriteInt64(wr, key.ExpiryTemporal().UnixMilli())
	if err != nil {
		return err
	}
	err = util.WriteBytes(wr, key.SignedPublicKeyBytes())
	if err != nil {
		return err
	}
	return util.WriteBytes(wr, key.Signature())
}

// Equal reports whether two identified keys carry the same key material.
func Equal(a, b IdentifiedKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a.SignedPublicKeyBytes(), b.SignedPublicKeyBytes()) &&
		a.ExpiryTemporal().Equal(b.ExpiryTemporal()) &&
		bytes.Equal(a.Signature(), b.Signature())
}
