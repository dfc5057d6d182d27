package entra

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"parishledger.org/internal/obs"
)

const (
	defaultKeyTTL       = 10 * time.Minute
	defaultFetchTimeout = 5 * time.Second
)

// Keyring caches the identity provider's public signing keys, indexed by kid.
// The key set is replaced wholesale on refresh, never mutated in place; a
// cache younger than the TTL is served as-is even when a kid is missing, so
// verification never turns into a fetch-per-request loop. Concurrent misses
// against a cold or expired cache coalesce into a single network fetch.
type Keyring struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// KeyringOption configures a Keyring.
type KeyringOption func(*Keyring)

// WithKeyTTL overrides the key set time-to-live.
func WithKeyTTL(ttl time.Duration) KeyringOption {
	return func(k *Keyring) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithHTTPClient overrides the fetch client (useful for tests).
func WithHTTPClient(client *http.Client) KeyringOption {
	return func(k *Keyring) {
		if client != nil {
			k.client = client
		}
	}
}

// WithKeyringClock overrides the time source.
func WithKeyringClock(fn func() time.Time) KeyringOption {
	return func(k *Keyring) {
		if fn != nil {
			k.now = fn
		}
	}
}

// NewKeyring builds a cache over the given JWKS URL.
func NewKeyring(url string, opts ...KeyringOption) *Keyring {
	k := &Keyring{
		url:    url,
		ttl:    defaultKeyTTL,
		client: &http.Client{Timeout: defaultFetchTimeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// SigningKey resolves a kid to a public key. With a fresh cache the lookup is
// lock-read only; a miss against a fresh cache is a hard ErrUnknownKey. A cold
// or expired cache triggers exactly one fetch per verification attempt, and a
// kid still absent afterwards is ErrUnknownKey, never defaulted.
func (k *Keyring) SigningKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	fresh := k.keys != nil && k.now().Sub(k.fetchedAt) < k.ttl
	key := k.keys[kid]
	k.mu.RUnlock()

	if fresh {
		if key != nil {
			return key, nil
		}
		return nil, ErrUnknownKey
	}

	if err := k.refresh(ctx); err != nil {
		return nil, err
	}

	k.mu.RLock()
	key = k.keys[kid]
	k.mu.RUnlock()
	if key == nil {
		return nil, ErrUnknownKey
	}
	return key, nil
}

// refresh fetches the key set once, coalescing concurrent callers.
func (k *Keyring) refresh(ctx context.Context) error {
	_, err, _ := k.group.Do("jwks", func() (any, error) {
		keys, err := k.fetch(ctx)
		if err != nil {
			obs.CountJWKSFetch("error")
			return nil, err
		}
		obs.CountJWKSFetch("ok")
		k.mu.Lock()
		k.keys = keys
		k.fetchedAt = k.now()
		k.mu.Unlock()
		return nil, nil
	})
	return err
}

type jwksDocument struct {
	Keys []jwkEntry `json:"keys"`
}

type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *Keyring) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrKeyFetch, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode key set: %v", ErrKeyFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kty != "RSA" || entry.Kid == "" {
			continue
		}
		pub, err := entry.publicKey()
		if err != nil {
			// A single undecodable key must not poison the rest of the set.
			continue
		}
		keys[entry.Kid] = pub
	}
	return keys, nil
}

func (e jwkEntry) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(e.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eBytes)
	if !exp.IsInt64() || exp.Int64() <= 0 {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(exp.Int64()),
	}, nil
}
