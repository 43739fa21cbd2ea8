package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Grace Hopper", DisplayName("  Grace Hopper ", "g@navy.mil"))
	assert.Equal(t, "Ada Lovelace", DisplayName("", "ada.lovelace@example.com"))
	assert.Equal(t, "there", DisplayName("", "@example.com"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ada@example.com"))
	assert.False(t, Valid("not-an-email"))
	assert.False(t, Valid("Ada <ada@example.com>"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ada@example.com", Normalize("  Ada@Example.COM "))
}
