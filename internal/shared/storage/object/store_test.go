package object

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legaldoc-backend/internal/shared/util"
)

func TestNewKeyNamespacesByUser(t *testing.T) {
	key, err := NewKey("user-1", "contract.pdf")
	require.NoError(t, err)

	parts := strings.SplitN(key, "/", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, util.HashUserKey("user-1"), parts[0])
	assert.True(t, strings.HasSuffix(parts[1], "_contract.pdf"))

	other, err := NewKey("user-1", "contract.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestNewKeyRejectsTraversal(t *testing.T) {
	_, err := NewKey("user-1", "../../etc/passwd")
	assert.Error(t, err)
}
