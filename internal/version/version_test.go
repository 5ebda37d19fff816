package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, sha, bt := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = v, sha, bt })

	assert.Equal(t, "gazetrack dev (unknown, built unknown)", String())

	Version, GitSHA, BuildTime = "0.4.1", "0123456789abcdef0123", "2026-03-01T09:00:00Z"
	assert.Equal(t, "gazetrack 0.4.1 (0123456789ab, built 2026-03-01T09:00:00Z)", String())
}
