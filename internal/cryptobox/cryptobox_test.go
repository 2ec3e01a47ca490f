package cryptobox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/genotype-cli/internal/model"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("rs4988235\t2\t136608646\tA\tG")
	passphrase := []byte("correct horse battery staple")

	blob, err := Encrypt(plaintext, passphrase)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, blob.Ciphertext)

	got, err := Decrypt(blob, passphrase)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	blob, err := Encrypt([]byte("payload"), []byte("right"))
	require.NoError(t, err)

	_, err = Decrypt(blob, []byte("wrong"))
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestEncryptFreshSaltAndNonce(t *testing.T) {
	passphrase := []byte("pass")
	a, err := Encrypt([]byte("same payload"), passphrase)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same payload"), passphrase)
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	passphrase := []byte("pass")
	blob, err := Encrypt([]byte("payload"), passphrase)
	require.NoError(t, err)

	restored, err := Unmarshal(blob.Marshal())
	require.NoError(t, err)

	got, err := Decrypt(restored, passphrase)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestTamperedBlobFailsAuthentication(t *testing.T) {
	passphrase := []byte("pass")
	blob, err := Encrypt([]byte("a reasonably long plaintext payload"), passphrase)
	require.NoError(t, err)
	encoded := blob.Marshal()

	// Flip one bit at every byte offset: magic, parameters, salt, nonce
	// and ciphertext must all be covered by authentication.
	for i := range encoded {
		tampered := append([]byte(nil), encoded...)
		tampered[i] ^= 0x01

		restored, err := Unmarshal(tampered)
		if err != nil {
			assert.ErrorIs(t, err, model.ErrAuthentication, "offset %d", i)
			continue
		}
		_, err = Decrypt(restored, passphrase)
		assert.ErrorIs(t, err, model.ErrAuthentication, "offset %d", i)
	}
}

func TestTruncatedBlob(t *testing.T) {
	blob, err := Encrypt([]byte("payload"), []byte("pass"))
	require.NoError(t, err)
	encoded := blob.Marshal()

	for _, n := range []int{0, 3, 15, len(encoded) - 1} {
		_, err := decodeAndDecrypt(encoded[:n], []byte("pass"))
		assert.ErrorIs(t, err, model.ErrAuthentication, "truncated to %d", n)
	}
}

func decodeAndDecrypt(data, passphrase []byte) ([]byte, error) {
	blob, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return Decrypt(blob, passphrase)
}

func TestDecryptRejectsAbsurdParameters(t *testing.T) {
	blob, err := Encrypt([]byte("payload"), []byte("pass"))
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Blob)
	}{
		{"huge N", func(b *Blob) { b.N = 1 << 30 }},
		{"zero N", func(b *Blob) { b.N = 0 }},
		{"non power of two N", func(b *Blob) { b.N = 12345 }},
		{"huge R", func(b *Blob) { b.R = 1024 }},
		{"huge P", func(b *Blob) { b.P = 64 }},
		{"short salt", func(b *Blob) { b.Salt = b.Salt[:8] }},
		{"short nonce", func(b *Blob) { b.Nonce = b.Nonce[:12] }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mutated := *blob
			tc.mutate(&mutated)
			_, err := Decrypt(&mutated, []byte("pass"))
			assert.ErrorIs(t, err, model.ErrAuthentication)
		})
	}
}

func TestEmptyPlaintext(t *testing.T) {
	blob, err := Encrypt(nil, []byte("pass"))
	require.NoError(t, err)

	got, err := Decrypt(blob, []byte("pass"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
