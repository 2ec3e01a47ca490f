// Package cryptobox provides passphrase-based authenticated encryption for
// the data-at-rest artifacts: scrypt key derivation with a per-blob random
// salt, XChaCha20-Poly1305 for the payload. Decryption fails closed; a
// tampered blob never yields partial plaintext.
package cryptobox

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/variantlab/genotype-cli/internal/model"
)

const (
	saltSize = 16
	keySize  = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	// Bounds accepted when reading back persisted derivation parameters.
	// Anything outside is treated as tampering rather than handed to
	// scrypt, which would otherwise attempt an absurd allocation.
	maxN = 1 << 22
	maxR = 32
	maxP = 4
)

var magic = [4]byte{'G', 'C', 'B', '1'}

// Blob is one encrypted payload together with everything needed to decrypt
// it except the passphrase. Opaque to every other component.
type Blob struct {
	Salt       []byte
	N, R, P    uint32
	Nonce      []byte
	Ciphertext []byte
}

// Encrypt seals plaintext under a key derived from the passphrase. A fresh
// salt and nonce are drawn per blob.
func Encrypt(plaintext, passphrase []byte) (*Blob, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, eris.Wrap(err, "cryptobox: generate salt")
	}

	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, eris.Wrap(err, "cryptobox: derive key")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, eris.Wrap(err, "cryptobox: init cipher")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, eris.Wrap(err, "cryptobox: generate nonce")
	}

	b := &Blob{
		Salt:  salt,
		N:     scryptN,
		R:     scryptR,
		P:     scryptP,
		Nonce: nonce,
	}
	// The header is bound as additional data so flipping a bit in the
	// persisted derivation parameters also fails authentication.
	b.Ciphertext = aead.Seal(nil, nonce, plaintext, b.header())
	return b, nil
}

// Decrypt opens a blob. Any integrity failure, including tampered metadata
// or a wrong passphrase, returns model.ErrAuthentication.
func Decrypt(b *Blob, passphrase []byte) ([]byte, error) {
	if len(b.Salt) != saltSize || len(b.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, model.ErrAuthentication
	}
	if b.N == 0 || b.N > maxN || b.N&(b.N-1) != 0 || b.R == 0 || b.R > maxR || b.P == 0 || b.P > maxP {
		return nil, model.ErrAuthentication
	}

	key, err := scrypt.Key(passphrase, b.Salt, int(b.N), int(b.R), int(b.P), keySize)
	if err != nil {
		return nil, model.ErrAuthentication
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, model.ErrAuthentication
	}

	plaintext, err := aead.Open(nil, b.Nonce, b.Ciphertext, b.header())
	if err != nil {
		return nil, model.ErrAuthentication
	}
	return plaintext, nil
}

// header serializes the blob metadata: magic, derivation parameters, salt,
// nonce. Used both as the persisted prefix and as AEAD additional data.
func (b *Blob) header() []byte {
	h := make([]byte, 0, 4+12+saltSize+len(b.Nonce))
	h = append(h, magic[:]...)
	h = binary.BigEndian.AppendUint32(h, b.N)
	h = binary.BigEndian.AppendUint32(h, b.R)
	h = binary.BigEndian.AppendUint32(h, b.P)
	h = append(h, b.Salt...)
	h = append(h, b.Nonce...)
	return h
}

// Marshal encodes the blob for storage.
func (b *Blob) Marshal() []byte {
	h := b.header()
	out := make([]byte, 0, len(h)+len(b.Ciphertext))
	out = append(out, h...)
	return append(out, b.Ciphertext...)
}

// Unmarshal decodes a stored blob. Structural damage surfaces as
// model.ErrAuthentication: a reader must never treat a mangled blob as
// anything but tampered.
func Unmarshal(data []byte) (*Blob, error) {
	headerLen := 4 + 12 + saltSize + chacha20poly1305.NonceSizeX
	if len(data) < headerLen {
		return nil, model.ErrAuthentication
	}
	if [4]byte(data[:4]) != magic {
		return nil, model.ErrAuthentication
	}
	b := &Blob{
		N:          binary.BigEndian.Uint32(data[4:8]),
		R:          binary.BigEndian.Uint32(data[8:12]),
		P:          binary.BigEndian.Uint32(data[12:16]),
		Salt:       append([]byte(nil), data[16:16+saltSize]...),
		Nonce:      append([]byte(nil), data[16+saltSize:headerLen]...),
		Ciphertext: append([]byte(nil), data[headerLen:]...),
	}
	return b, nil
}
