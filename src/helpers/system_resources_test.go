package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionCapFor(t *testing.T) {
	assert.Equal(t, 1, sessionCapFor(0))
	assert.Equal(t, 1, sessionCapFor(300))
	assert.Equal(t, 24, sessionCapFor(6144))
}

func TestRecommendedSessionCapPositive(t *testing.T) {
	assert.GreaterOrEqual(t, RecommendedSessionCap(), 1)
}
