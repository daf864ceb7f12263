package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mangable/mangable/pkg/mangable/models"
	"gorm.io/gorm"
)

const (
	// KeyTag is the fixed public prefix of every generated key
	KeyTag = "mng_"
	// SecretLength is the number of random characters after the tag
	SecretLength = 44
	// KeyPrefixLength is the number of leading characters stored for lookup
	KeyPrefixLength = 10
	// MaxActiveKeys is the per-user quota of simultaneously active keys
	MaxActiveKeys = 10
)

const keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	ErrQuotaExceeded = errors.New("active api key quota exceeded")
	ErrKeyNotFound   = errors.New("api key not found")
	ErrKeyRevoked    = errors.New("api key revoked")
	ErrKeyExpired    = errors.New("api key expired")
	ErrBadSecret     = errors.New("api key secret mismatch")
)

// generateKey creates a new random API key: the fixed tag followed by
// SecretLength characters drawn from crypto-quality randomness
func generateKey() (string, error) {
	var sb strings.Builder
	sb.WriteString(KeyTag)
	for i := 0; i < SecretLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyCharset))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(keyCharset[n.Int64()])
	}
	return sb.String(), nil
}

// hashKey creates a SHA-256 hash of the full API key. Key secrets are
// high-entropy random values, so a fast digest is enough; slow hashing
// would add latency to every resolved request.
func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ResolveKey validates a presented API key and returns its record.
// Lookup is by stored prefix (the secret is never stored, only its
// hash), the digest comparison is constant-time, and revocation and
// expiry are checked independently. On success the last-used timestamp
// is updated best-effort without blocking the caller.
func ResolveKey(db *gorm.DB, raw string) (*models.APIKey, error) {
	if len(raw) < KeyPrefixLength || !strings.HasPrefix(raw, KeyTag) {
		return nil, ErrKeyNotFound
	}

	var candidates []models.APIKey
	if err := db.Where("key_prefix = ?", raw[:KeyPrefixLength]).Find(&candidates).Error; err != nil {
		return nil, ErrKeyNotFound
	}
	if len(candidates) == 0 {
		return nil, ErrKeyNotFound
	}

	digest := hashKey(raw)
	for i := range candidates {
		if subtle.ConstantTimeCompare([]byte(digest), []byte(candidates[i].KeyHash)) != 1 {
			continue
		}

		key := &candidates[i]
		if key.RevokedAt != nil {
			return nil, ErrKeyRevoked
		}
		if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
			return nil, ErrKeyExpired
		}

		// Update last used (fire and forget)
		go UpdateLastUsed(db, key.ID)

		return key, nil
	}

	return nil, ErrBadSecret
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func UpdateLastUsed(db *gorm.DB, keyID uuid.UUID) {
	now := time.Now()
	db.Model(&models.APIKey{}).Where("id = ?", keyID).Update("last_used_at", now)
}
