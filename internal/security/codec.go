package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidKeyLength = errors.New("encryption key must be 16, 24, or 32 bytes")
	ErrEncrypt          = errors.New("encryption failed")
	// ErrDecrypt is deliberately opaque: malformed payloads, wrong keys and
	// tampered ciphertext all surface as the same error so callers cannot be
	// used as a padding/format oracle.
	ErrDecrypt = errors.New("unable to decrypt payload")
)

// payloadDelimiter joins the encoded nonce and ciphertext halves. Standard
// base64 never contains ':', so splitting is unambiguous.
const payloadDelimiter = ":"

// DefaultKDFIterations is the PBKDF2 iteration count for DeriveKey.
const DefaultKDFIterations = 10000

// Codec provides the symmetric encryption, one-way hashing and HMAC signing
// primitives shared by the CSRF guard and the payment tokenizer.
// Construct it once at startup with keys from config; it is read-only after
// that and safe for concurrent use.
type Codec struct {
	key  []byte
	salt string
}

// NewCodec creates a Codec with the given AES key and hashing salt.
func NewCodec(key []byte, salt string) (*Codec, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeyLength
	}
	return &Codec{key: key, salt: salt}, nil
}

// Encrypt serializes v to JSON and encrypts it with AES-GCM under a fresh
// random nonce. The result is "base64(nonce):base64(ciphertext)".
func (c *Codec) Encrypt(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", ErrEncrypt
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrEncrypt
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncrypt
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", ErrEncrypt
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(nonce) +
		payloadDelimiter +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. The decrypted JSON is re-parsed when possible;
// otherwise the raw string is returned. Any failure yields ErrDecrypt with
// no indication of which stage failed.
func (c *Codec) Decrypt(payload string) (any, error) {
	parts := strings.SplitN(payload, payloadDelimiter, 2)
	if len(parts) != 2 {
		return nil, ErrDecrypt
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrDecrypt
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrDecrypt
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, ErrDecrypt
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrDecrypt
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}

	var parsed any
	if err := json.Unmarshal(plaintext, &parsed); err != nil {
		return string(plaintext), nil
	}
	return parsed, nil
}

// HashWithSalt returns the hex SHA-256 digest of value concatenated with the
// codec's salt. Deterministic; used for storage and equality checks only.
func (c *Codec) HashWithSalt(value string) string {
	sum := sha256.Sum256([]byte(value + c.salt))
	return hex.EncodeToString(sum[:])
}

// DeriveKey runs an iterated PBKDF2-SHA256 derivation over the value. Use
// this instead of HashWithSalt for card-adjacent data where a plain digest
// would be too cheap to brute-force.
func (c *Codec) DeriveKey(value string, iterations int) string {
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	derived := pbkdf2.Key([]byte(value), []byte(c.salt), iterations, 32, sha256.New)
	return hex.EncodeToString(derived)
}

// Sign computes the hex HMAC-SHA256 of payload under secret.
func Sign(payload string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(payload, signature string, secret []byte) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RandomHex returns n cryptographically random bytes hex-encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
