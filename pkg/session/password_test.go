package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("correct horse battery stable", hash))
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	a, err := HashPassword("hunter2")
	require.NoError(t, err)
	b, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedEncodings(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=1,p=4$notbase64!!$alsobad",
		"$bcrypt$whatever",
	} {
		assert.False(t, VerifyPassword("hunter2", encoded), "encoded=%q", encoded)
	}
}

func TestValidatePasswordLengthBounds(t *testing.T) {
	assert.False(t, ValidatePasswordLength("abcd"))
	assert.True(t, ValidatePasswordLength("abcde"))
	assert.True(t, ValidatePasswordLength(strings.Repeat("x", 1024)))
	assert.False(t, ValidatePasswordLength(strings.Repeat("x", 1025)))
}

func TestValidateName(t *testing.T) {
	valid := []string{"Jo", "Aria", "Mary-Anne", "d'Artagnan", "under_score", "Bob the 2nd"}
	for _, name := range valid {
		assert.True(t, ValidateName(name), "name=%q", name)
	}

	invalid := []string{
		"x",                     // too short
		strings.Repeat("a", 33), // too long
		"pipe|name",
		"new\nline",
		"tabby\tcat",
		"dot.name",
		"quoted\"name",
	}
	for _, name := range invalid {
		assert.False(t, ValidateName(name), "name=%q", name)
	}
}
