package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/core/domain"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T, key string) *EncryptionService {
	t.Helper()
	svc, err := NewEncryptionService(KeyMaterial(key))
	require.NoError(t, err)
	return svc
}

func TestNewEncryptionService_ShortKey(t *testing.T) {
	_, err := NewEncryptionService(KeyMaterial("too-short"))

	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestNewEncryptionService_LongKeyUsesPrefix(t *testing.T) {
	long := newService(t, testKey+"-extra-material")
	exact := newService(t, testKey)

	ciphertext, err := long.Encrypt("4532015112830366")
	require.NoError(t, err)

	plaintext, err := exact.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "4532015112830366", plaintext)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	svc := newService(t, testKey)

	inputs := []string{
		"4532015112830366",
		"12/28",
		"123",
		"çãõ ü ß €!@#$%^&*()_+{}|:<>?",
		strings.Repeat("x", 4096),
	}

	for _, in := range inputs {
		ciphertext, err := svc.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, ciphertext)

		plaintext, err := svc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, in, plaintext)
	}
}

func TestEncrypt_IsNotDeterministic(t *testing.T) {
	svc := newService(t, testKey)

	first, err := svc.Encrypt("4532015112830366")
	require.NoError(t, err)
	second, err := svc.Encrypt("4532015112830366")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptDecrypt_EmptyPassesThrough(t *testing.T) {
	svc := newService(t, testKey)

	ciphertext, err := svc.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)

	plaintext, err := svc.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestDecrypt_WrongKey(t *testing.T) {
	ciphertext, err := newService(t, testKey).Encrypt("4532015112830366")
	require.NoError(t, err)

	other := newService(t, "fedcba9876543210fedcba9876543210")
	_, err = other.Decrypt(ciphertext)

	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestDecrypt_CorruptInput(t *testing.T) {
	svc := newService(t, testKey)

	ciphertext, err := svc.Encrypt("4532015112830366")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	cases := map[string]string{
		"not base64": "%%%not-base64%%%",
		"truncated":  base64.StdEncoding.EncodeToString([]byte("short")),
		"tampered":   tampered,
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Decrypt(in)
			assert.ErrorIs(t, err, domain.ErrDecryption)
		})
	}
}
