package endpoints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryURLs(t *testing.T) {
	r, err := New("https://kb.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "https://kb.example.com", r.BaseURL())
	assert.Equal(t, "https://kb.example.com/files/upload", r.Upload())
	assert.Equal(t, "https://kb.example.com/files/list?user_email=varun%40example.com", r.ListFiles("varun@example.com"))
	assert.Equal(t, "https://kb.example.com/files/a%2Fb?user_email=x%40y.z", r.DeleteFile("a/b", "x@y.z"))
	assert.Equal(t, "https://kb.example.com/chat/query", r.ChatQuery())
}

func TestRegistryRejectsBadBase(t *testing.T) {
	for _, base := range []string{"", "kb.example.com", "ftp://kb.example.com", "http://"} {
		_, err := New(base)
		assert.Error(t, err, base)
	}
}
