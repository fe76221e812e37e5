package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMojangHexDigest(t *testing.T) {
	// Known server hash vectors published by Mojang.
	for input, expected := range map[string]string{
		"Notch": "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48",
		"jeb_":  "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1",
		"simon": "88e16a1019277b15d58faf0541e11910eb756f6",
	} {
		digest := sha1.Sum([]byte(input))
		assert.Equal(t, expected, mojangHexDigest(digest[:]), "input %q", input)
	}
}

func newTestAuthenticator(t *testing.T) Authenticator {
	t.Helper()
	a, err := New(Options{})
	require.NoError(t, err)
	return a
}

func TestVerify(t *testing.T) {
	a := newTestAuthenticator(t)

	// The public key must be usable to encrypt the verify token,
	// as a joining client would.
	key, err := publicKeyOf(a)
	require.NoError(t, err)

	token := []byte{1, 2, 3, 4}
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, key, token)
	require.NoError(t, err)

	equal, err := a.Verify(encrypted, token)
	require.NoError(t, err)
	assert.True(t, equal)

	equal, err = a.Verify(encrypted, []byte{4, 3, 2, 1})
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestDecryptSharedSecret(t *testing.T) {
	a := newTestAuthenticator(t)
	key, err := publicKeyOf(a)
	require.NoError(t, err)

	secret := make([]byte, 16)
	_, _ = rand.Read(secret)
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, key, secret)
	require.NoError(t, err)

	decrypted, err := a.DecryptSharedSecret(encrypted)
	require.NoError(t, err)
	assert.Equal(t, secret, decrypted)
}

func TestGenerateServerID_Deterministic(t *testing.T) {
	a := newTestAuthenticator(t)
	secret := []byte("0123456789abcdef")
	id1, err := a.GenerateServerID(secret)
	require.NoError(t, err)
	id2, err := a.GenerateServerID(secret)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	other, err := a.GenerateServerID([]byte("fedcba9876543210"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)
}

func TestAuthenticateJoin(t *testing.T) {
	profileBody := `{"id":"069a79f444e94726a5befca90e38aaf5","name":"Notch","properties":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("username") {
		case "Notch":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(profileBody))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	baseURL, err := url.Parse(srv.URL)
	require.NoError(t, err)
	a, err := New(Options{
		HasJoinedURLFn: CustomHasJoinedURL(baseURL),
		Client:         srv.Client(),
	})
	require.NoError(t, err)

	resp, err := a.AuthenticateJoin(context.Background(), "serverhash", "Notch", "")
	require.NoError(t, err)
	require.True(t, resp.OnlineMode())
	gameProfile, err := resp.GameProfile()
	require.NoError(t, err)
	assert.Equal(t, "Notch", gameProfile.Name)
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", gameProfile.ID.String())

	resp, err = a.AuthenticateJoin(context.Background(), "serverhash", "Cracked", "")
	require.NoError(t, err)
	assert.False(t, resp.OnlineMode())
	gameProfile, err = resp.GameProfile()
	require.NoError(t, err)
	assert.Nil(t, gameProfile)
}

// publicKeyOf parses the authenticator's DER encoded public key.
func publicKeyOf(a Authenticator) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(a.PublicKey())
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is no RSA key")
	}
	return rsaKey, nil
}
