// Package fieldcrypt protects sensitive free-text fields at rest: incident
// descriptions, involved parties, locations, comment bodies and stored
// configuration secrets.
//
// Values are encrypted with AES-256-GCM under a key derived from the
// ENCRYPTION_KEY master key and a fresh per-value salt, and serialized as
// four colon-separated lowercase hex components: salt:iv:ciphertext:authTag.
// The older three-part format (iv:ciphertext:authTag) derived its key from a
// fixed salt shared by every value; it is still readable for migration but
// is never produced on new writes.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/crypto/scrypt"

	"github.com/dipendra-mule/conducky-sub002/internal/obs"
)

const (
	envKey     = "ENCRYPTION_KEY"
	envMode    = "CONDUCKY_ENV"
	saltLength = 32
	keyLength  = 32
	gcmTagSize = 16

	// legacySalt is the fixed derivation salt the historical format used
	// for every value. Kept only so old ciphertext stays readable.
	legacySalt = "salt"

	// testFallbackKey applies only when CONDUCKY_ENV=test, so the suite
	// runs without environment setup. Production start-up without a real
	// key fails hard instead of silently storing plaintext.
	testFallbackKey = "conducky-insecure-test-key-do-not-use"
)

// ErrMissingKey is returned when no master key is configured outside the
// test environment.
var ErrMissingKey = errors.New("fieldcrypt: ENCRYPTION_KEY environment variable is required")

// A component may be empty: an encrypted empty string has an empty
// ciphertext component.
var hexPart = regexp.MustCompile(`^[0-9a-fA-F]*$`)

// Codec encrypts and decrypts field values. It is stateless beyond the
// master key and safe for concurrent use.
type Codec struct {
	master []byte
}

// New builds a codec from the master key. An empty key is a hard error
// unless testMode is set, in which case a fixed throwaway key applies.
func New(masterKey string, testMode bool) (*Codec, error) {
	masterKey = strings.TrimSpace(masterKey)
	if masterKey == "" {
		if !testMode {
			return nil, ErrMissingKey
		}
		masterKey = testFallbackKey
	}
	return &Codec{master: []byte(masterKey)}, nil
}

// FromEnv builds a codec from ENCRYPTION_KEY, treating CONDUCKY_ENV=test
// as test mode.
func FromEnv() (*Codec, error) {
	return New(os.Getenv(envKey), strings.EqualFold(os.Getenv(envMode), "test"))
}

// Encrypt converts a plaintext to the stored four-part encoding. Every call
// draws a fresh random salt and IV, so encrypting the same plaintext twice
// yields different ciphertexts and different salts. The empty string is a
// real value and is encrypted like any other.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("fieldcrypt: generate salt: %w", err)
	}
	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("fieldcrypt: generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, ":"), nil
}

// EncryptField encrypts an optional field. A nil pointer means "field
// absent" and passes through unchanged; a pointer to the empty string is
// encrypted.
func (c *Codec) EncryptField(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	encrypted, err := c.Encrypt(*plaintext)
	if err != nil {
		return nil, err
	}
	return &encrypted, nil
}

// Decrypt converts a stored value back to plaintext. Values that do not
// parse as the four-part or legacy three-part encoding — and values that
// fail authentication — are returned unchanged rather than erroring, so a
// corrupted field surfaces as-is instead of blocking the whole record.
func (c *Codec) Decrypt(value string) string {
	if value == "" {
		return value
	}
	parts := strings.Split(value, ":")
	if !allHex(parts) {
		return value
	}

	var plaintext string
	var err error
	switch len(parts) {
	case 4:
		plaintext, err = c.open(parts[0], parts[1], parts[2], parts[3], false)
	case 3:
		plaintext, err = c.open("", parts[0], parts[1], parts[2], true)
	default:
		return value
	}
	if err != nil {
		obs.CountDecryptFailure()
		obs.LogEvent("warn", "field decryption failed, returning stored value", map[string]any{
			"reason": err.Error(),
		})
		return value
	}
	return plaintext
}

// DecryptField decrypts an optional field; nil passes through.
func (c *Codec) DecryptField(value *string) *string {
	if value == nil {
		return nil
	}
	plaintext := c.Decrypt(*value)
	return &plaintext
}

// EncryptLegacy produces a three-part value under the historical fixed-salt
// scheme.
//
// Deprecated: retained only to fabricate fixtures for the migration path.
// New writes always use Encrypt.
func (c *Codec) EncryptLegacy(plaintext string) (string, error) {
	gcm, err := c.aead([]byte(legacySalt))
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("fieldcrypt: generate iv: %w", err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, ":"), nil
}

// IsEncrypted reports whether the value looks like either stored encoding:
// exactly three or four colon-separated parts, every part hexadecimal.
func IsEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return false
	}
	return allHex(parts)
}

// IsLegacyEncrypted reports whether the value is in the fixed-salt
// three-part format that the migration rewrites.
func IsLegacyEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return false
	}
	return allHex(parts)
}

func (c *Codec) open(saltHex, ivHex, ciphertextHex, tagHex string, legacy bool) (string, error) {
	var salt []byte
	if legacy {
		salt = []byte(legacySalt)
	} else {
		decoded, err := hex.DecodeString(saltHex)
		if err != nil {
			return "", fmt.Errorf("decode salt: %w", err)
		}
		salt = decoded
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return "", fmt.Errorf("decode auth tag: %w", err)
	}

	gcm, err := c.aeadWithNonceSize(salt, len(iv))
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	return string(plaintext), nil
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	return c.aeadWithNonceSize(salt, 0)
}

// aeadWithNonceSize derives the per-value key and builds the AEAD. A
// non-standard nonce size keeps values written with 16-byte IVs readable.
func (c *Codec) aeadWithNonceSize(salt []byte, nonceSize int) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.master, salt, 16384, 8, 1, keyLength)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: init cipher: %w", err)
	}
	if nonceSize <= 0 {
		return cipher.NewGCM(block)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

func allHex(parts []string) bool {
	for _, part := range parts {
		if !hexPart.MatchString(part) {
			return false
		}
	}
	return true
}
