package evidence

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
)

// Signer produces HMAC-SHA256 signatures over evidence records, wrapped in
// a circuit breaker so a misbehaving signing dependency fails fast instead
// of hanging writers (per spec.md §7: ledger failures are fatal to the
// current action, not silently retried indefinitely).
type Signer struct {
	key     []byte
	breaker *gobreaker.CircuitBreaker
}

// NewSigner constructs a Signer keyed by the process-held signing key.
func NewSigner(key []byte) *Signer {
	settings := gobreaker.Settings{
		Name:        "evidence-signer",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Signer{key: key, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// signable is the subset of a Record covered by its signature; Signature
// itself is excluded to avoid signing over the signature field.
type signable struct {
	ID        int64                  `json:"id"`
	Kind      Kind                   `json:"kind"`
	Actor     string                 `json:"actor"`
	Subject   string                 `json:"subject"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sign computes the record's signature through the circuit breaker.
func (s *Signer) Sign(rec Record) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.signNow(rec)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Signer) signNow(rec Record) (string, error) {
	body, err := json.Marshal(signable{
		ID:        rec.ID,
		Kind:      rec.Kind,
		Actor:     rec.Actor,
		Subject:   rec.Subject,
		Payload:   rec.Payload,
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes and compares a record's signature in constant time.
func (s *Signer) Verify(rec Record) (bool, error) {
	expected, err := s.signNow(rec)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(rec.Signature)), nil
}
