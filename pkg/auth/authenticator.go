// Package auth authenticates joining online mode players
// with Mojang's session server.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/profile"
)

// Authenticator is a Mojang user authenticator.
type Authenticator interface {
	// PublicKey returns the server's public key encoded in ASN.1 DER form.
	PublicKey() []byte
	// Verify verifies the encrypted verify token sent by the joining client
	// against the token the proxy generated, in constant time.
	Verify(encryptedVerifyToken, actualVerifyToken []byte) (equal bool, err error)
	// DecryptSharedSecret decrypts the shared secret sent by the client.
	DecryptSharedSecret(encrypted []byte) (decrypted []byte, err error)
	// GenerateServerID computes the server hash for AuthenticateJoin.
	GenerateServerID(decryptedSharedSecret []byte) (serverID string, err error)
	// AuthenticateJoin authenticates a joining user. The ip is optional.
	AuthenticateJoin(ctx context.Context, serverID, username, ip string) (Response, error)
}

// Response is the authentication response.
type Response interface {
	// OnlineMode is true when the user is authenticated.
	OnlineMode() bool
	// GameProfile extracts the GameProfile from an authenticated client.
	// Returns nil, nil if OnlineMode is false.
	GameProfile() (*profile.GameProfile, error)
}

const defaultHasJoinedEndpoint = `https://sessionserver.mojang.com/session/minecraft/hasJoined`

var defaultHasJoinedBaseURL, _ = url.Parse(defaultHasJoinedEndpoint)

// HasJoinedURLFn returns the url to authenticate a joining
// online mode user. The userIP is optional.
type HasJoinedURLFn func(serverID, username, userIP string) string

// DefaultHasJoinedURL returns the default hasJoined URL for the given
// serverID and username. The userIP is optional.
func DefaultHasJoinedURL(serverID, username, userIP string) string {
	return buildHasJoinedURL(defaultHasJoinedBaseURL, serverID, username, userIP)
}

// CustomHasJoinedURL returns a HasJoinedURLFn using the given baseURL
// instead of the official Mojang API endpoint.
func CustomHasJoinedURL(baseURL *url.URL) HasJoinedURLFn {
	if baseURL == nil {
		baseURL = defaultHasJoinedBaseURL
	}
	return func(serverID, username, userIP string) string {
		return buildHasJoinedURL(baseURL, serverID, username, userIP)
	}
}

func buildHasJoinedURL(baseURL *url.URL, serverID, username, userIP string) string {
	query := url.Values{}
	query.Set("serverId", serverID)
	query.Set("username", username)
	if userIP != "" {
		query.Set("ip", userIP)
	}
	return baseURL.ResolveReference(&url.URL{RawQuery: query.Encode()}).String()
}

// DefaultPrivateKeyBits is the default bit size of a generated private key.
const DefaultPrivateKeyBits = 1024

// Options to create a new Authenticator.
type Options struct {
	// HasJoinedURLFn allows an authentication url other than the
	// official hasJoined Mojang API endpoint.
	// If not set, DefaultHasJoinedURL is used.
	HasJoinedURLFn HasJoinedURLFn
	// The server's private key.
	// If none is set, a new one is generated.
	PrivateKey *rsa.PrivateKey
	// If PrivateKey is not set, the bit size of the generated
	// private key. The default is DefaultPrivateKeyBits.
	PrivateKeyBits int
	// The http client used to query the session server.
	// If none is set, a new one is created.
	Client *http.Client
}

// New returns a new Authenticator.
func New(options Options) (Authenticator, error) {
	private := options.PrivateKey
	if private == nil {
		bits := options.PrivateKeyBits
		if bits <= 0 {
			bits = DefaultPrivateKeyBits
		}
		var err error
		private, err = rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("error generating %d bit private key: %w", bits, err)
		}
	}
	public, err := x509.MarshalPKIXPublicKey(private.Public())
	if err != nil {
		return nil, fmt.Errorf("error encoding public key: %w", err)
	}
	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	hasJoinedURLFn := options.HasJoinedURLFn
	if hasJoinedURLFn == nil {
		hasJoinedURLFn = DefaultHasJoinedURL
	}
	return &authenticator{
		private:        private,
		public:         public,
		client:         client,
		hasJoinedURLFn: hasJoinedURLFn,
	}, nil
}

type authenticator struct {
	private        *rsa.PrivateKey
	public         []byte // ASN.1 DER form
	client         *http.Client
	hasJoinedURLFn HasJoinedURLFn
}

var _ Authenticator = (*authenticator)(nil)

func (a *authenticator) PublicKey() []byte { return a.public }

func (a *authenticator) Verify(encryptedVerifyToken, actualVerifyToken []byte) (bool, error) {
	decrypted, err := rsa.DecryptPKCS1v15(rand.Reader, a.private, encryptedVerifyToken)
	if err != nil {
		return false, fmt.Errorf("error decrypting verify token: %w", err)
	}
	return subtle.ConstantTimeCompare(decrypted, actualVerifyToken) == 1, nil
}

func (a *authenticator) DecryptSharedSecret(encrypted []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, a.private, encrypted)
}

func (a *authenticator) GenerateServerID(decryptedSharedSecret []byte) (string, error) {
	hash := sha1.New()
	// The server id intentionally stays empty, as the vanilla
	// server does since 1.7.
	if _, err := hash.Write(decryptedSharedSecret); err != nil {
		return "", err
	}
	if _, err := hash.Write(a.public); err != nil {
		return "", err
	}
	return mojangHexDigest(hash.Sum(nil)), nil
}

// mojangHexDigest hexes a sha1 digest Java's BigInteger style:
// interpreted as a signed, two's-complement number with a minus
// sign when negative and without leading zeros.
func mojangHexDigest(digest []byte) string {
	negative := (digest[0] & 0x80) == 0x80
	if negative {
		// two's complement
		carry := true
		for i := len(digest) - 1; i >= 0; i-- {
			digest[i] = ^digest[i]
			if carry {
				carry = digest[i] == 0xFF
				digest[i]++
			}
		}
	}
	d := hex.EncodeToString(digest)
	for len(d) > 0 && d[0] == '0' {
		d = d[1:]
	}
	if negative {
		return "-" + d
	}
	return d
}

func (a *authenticator) AuthenticateJoin(ctx context.Context, serverID, username, ip string) (Response, error) {
	hasJoinedURL := a.hasJoinedURLFn(serverID, username, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hasJoinedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating hasJoined request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying session server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	log := logr.FromContextOrDiscard(ctx)
	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading session server response: %w", err)
		}
		return &response{onlineMode: true, body: body}, nil
	case http.StatusNoContent, http.StatusNotFound:
		// User not authenticated or unknown.
		return &response{onlineMode: false}, nil
	default:
		log.V(1).Info("unexpected session server response", "status", resp.Status)
		return nil, fmt.Errorf("session server responded with unexpected status %s", resp.Status)
	}
}

type response struct {
	onlineMode bool
	body       []byte
}

var _ Response = (*response)(nil)

func (r *response) OnlineMode() bool { return r.onlineMode }

func (r *response) GameProfile() (*profile.GameProfile, error) {
	if !r.onlineMode {
		return nil, nil
	}
	p := new(profile.GameProfile)
	if err := json.Unmarshal(r.body, p); err != nil {
		return nil, fmt.Errorf("error unmarshaling game profile: %w", err)
	}
	return p, nil
}
