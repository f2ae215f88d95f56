package wire

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// Sealer signs launch requests into compact JWS strings and opens them again.
// Keys are Ed25519 and identified by kid; one key is active for signing and
// every registered key verifies.
type Sealer struct {
	mu        sync.RWMutex
	activeKid string
	privKeys  map[string]ed25519.PrivateKey
	pubKeys   map[string]ed25519.PublicKey
}

// NewSealer returns a Sealer with a freshly generated active key.
func NewSealer() (*Sealer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate launch key: %w", err)
	}
	s := &Sealer{
		privKeys: make(map[string]ed25519.PrivateKey),
		pubKeys:  make(map[string]ed25519.PublicKey),
	}
	kid := uuid.NewString()
	s.AddKey(kid, priv)
	if err := s.SetActive(kid); err != nil {
		return nil, err
	}
	return s, nil
}

// AddKey registers a key pair under kid. The active key is unchanged.
func (s *Sealer) AddKey(kid string, priv ed25519.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privKeys[kid] = priv
	s.pubKeys[kid] = priv.Public().(ed25519.PublicKey)
}

// SetActive selects the key used for sealing.
func (s *Sealer) SetActive(kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.privKeys[kid]; !ok {
		return fmt.Errorf("unknown kid: %s", kid)
	}
	s.activeKid = kid
	return nil
}

// ActiveKID returns the kid used for sealing.
func (s *Sealer) ActiveKID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeKid
}

// Seal encodes and signs r.
func (s *Sealer) Seal(r LaunchRequest) (string, error) {
	payload, err := r.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode launch request: %w", err)
	}

	s.mu.RLock()
	kid := s.activeKid
	priv, ok := s.privKeys[kid]
	s.mu.RUnlock()
	if kid == "" || !ok {
		return "", fmt.Errorf("no active kid configured")
	}

	opts := (&jose.SignerOptions{}).WithType("dialog-launch+jws").WithHeader("kid", kid)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: priv}, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	compact, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize jws: %w", err)
	}
	return compact, nil
}

// Open verifies a sealed payload and decodes the launch request. Every
// failure wraps ErrInvalidPayload.
func (s *Sealer) Open(sealed string) (LaunchRequest, error) {
	jws, err := jose.ParseSigned(sealed, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return LaunchRequest{}, fmt.Errorf("%w: parse: %v", ErrInvalidPayload, err)
	}
	if len(jws.Signatures) != 1 {
		return LaunchRequest{}, fmt.Errorf("%w: unexpected signatures: %d", ErrInvalidPayload, len(jws.Signatures))
	}
	kid := jws.Signatures[0].Protected.KeyID

	s.mu.RLock()
	pub, ok := s.pubKeys[kid]
	s.mu.RUnlock()
	if !ok {
		return LaunchRequest{}, fmt.Errorf("%w: unknown kid: %s", ErrInvalidPayload, kid)
	}
	payload, err := jws.Verify(pub)
	if err != nil {
		return LaunchRequest{}, fmt.Errorf("%w: signature verification failed: %v", ErrInvalidPayload, err)
	}
	return DecodeLaunchRequest(payload)
}
