package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAdminKey(t *testing.T) {
	hash, err := HashAdminKey("super-secret")
	require.NoError(t, err)

	assert.True(t, VerifyAdminKey(hash, "super-secret"))
	assert.False(t, VerifyAdminKey(hash, "wrong"))
	assert.False(t, VerifyAdminKey("", "super-secret"))
	assert.False(t, VerifyAdminKey(hash, ""))
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	cases := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (Macintosh)", false},
		{"Googlebot/2.1", true},
		{"my-crawler/1.0", true},
		{"curl/8.0", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, isSuspiciousUserAgent(tc.ua), tc.ua)
	}
}
