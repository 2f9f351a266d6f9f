package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Password length bounds: short passwords are trivially
// guessable, absurdly long ones are a denial-of-service vector against the
// hashing step itself.
const (
	MinPasswordLength = 5
	MaxPasswordLength = 1024
)

// argon2 tuning. These are deliberately modest for a server handling many
// concurrent logins rather than tuned for maximum single-hash cost.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// ValidatePasswordLength reports whether pw satisfies the [5,1024] rule.
func ValidatePasswordLength(pw string) bool {
	return len(pw) >= MinPasswordLength && len(pw) <= MaxPasswordLength
}

// HashPassword returns an encoded Argon2id digest carrying its own salt and
// parameters, in the same "$argon2id$v=..$m=..,t=..,p=..$salt$hash" style
// most Go Argon2id wrappers use, so a future parameter change does not
// invalidate passwords hashed under the old parameters.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("session: generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// VerifyPassword reports whether password matches encoded, in constant time
// once both digests are computed.
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
