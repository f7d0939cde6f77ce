package cryptox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *FieldCipher {
	t.Helper()
	c, err := NewFieldCipher("unit-test-key-material", "unit-test-salt")
	require.NoError(t, err)
	return c
}

func TestNewFieldCipherRequiresKeyMaterial(t *testing.T) {
	_, err := NewFieldCipher("", "salt")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	inputs := []string{
		"rent for march",
		"تحويل إلى حساب التوفير",
		strings.Repeat("x", 4096),
		"1234567890",
	}

	for _, plaintext := range inputs {
		ciphertext, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		got, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptEmptyStringIsPassthrough(t *testing.T) {
	c := newTestCipher(t)

	ciphertext, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)

	got, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	c := newTestCipher(t)

	ciphertext, err := c.Encrypt("sensitive note")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	corrupted := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(corrupted)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	c := newTestCipher(t)

	for _, input := range []string{"not base64 at all!!!", "YWJj", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.Decrypt(input)
		assert.ErrorIs(t, err, ErrDecryptionFailed, "input %q", input)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c := newTestCipher(t)
	other, err := NewFieldCipher("a different passphrase", "unit-test-salt")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("sensitive note")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
