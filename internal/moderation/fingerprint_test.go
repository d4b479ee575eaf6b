package moderation_test

import (
	"testing"

	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	base := moderation.Fingerprint("you are bad")

	assert.Len(t, base, 64)
	assert.Equal(t, base, moderation.Fingerprint("You  ARE\nbad "))
	assert.Equal(t, base, moderation.Fingerprint("ｙｏｕ are bad"))
	assert.NotEqual(t, base, moderation.Fingerprint("bad you are"))
	assert.NotEqual(t, base, moderation.Fingerprint("you are bad!"))
}
