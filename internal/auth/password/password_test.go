package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	assert.True(t, Verify("correct horse battery", hash))
	assert.False(t, Verify("wrong password", hash))
	assert.False(t, Verify("correct horse battery", "not-a-hash"))
	assert.False(t, Verify("correct horse battery", ""))
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("same password")
	require.NoError(t, err)
	second, err := Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, Verify("same password", first))
	assert.True(t, Verify("same password", second))
}
