package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := &Store{password: "print-shop-secret"}
	plain := []byte("%PDF-1.4\nsome document body\n%%EOF\n")

	blob, err := s.encrypt(plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, blob)
	require.Equal(t, magic, string(blob[:len(magic)]))

	got, err := s.decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestDecryptRejectsWrongPassword(t *testing.T) {
	s := &Store{password: "right"}
	blob, err := s.encrypt([]byte("secret document"))
	require.NoError(t, err)

	wrong := &Store{password: "wrong"}
	_, err = wrong.decrypt(blob)
	require.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	s := &Store{password: "x"}

	_, err := s.decrypt([]byte("short"))
	require.Error(t, err)

	junk := make([]byte, 64)
	_, err = s.decrypt(junk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unrecognized")
}

func TestEncryptIsSalted(t *testing.T) {
	s := &Store{password: "x"}
	a, err := s.encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	b, err := s.encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	// fresh salt and nonce per blob
	require.NotEqual(t, a, b)
}
