package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentDir(t *testing.T) {
	assert.Equal(t, "example.com/daniel", AgentDir("daniel@example.com"))
	assert.Equal(t, "mail.example.org/lanny", AgentDir("lanny@mail.example.org"))
}
