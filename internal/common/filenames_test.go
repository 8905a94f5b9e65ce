package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserBucket(t *testing.T) {
	a := UserBucket("alice")
	b := UserBucket("alice")
	assert.Equal(t, a, b, "same user must map to the same bucket")
	assert.True(t, strings.HasPrefix(a, "users/"))

	c := UserBucket("bob")
	assert.NotEqual(t, a, c, "different users must not share a bucket")

	anon := UserBucket("")
	assert.Equal(t, UserBucket(AnonymousUser), anon, "empty user maps to the anonymous bucket")
}

func TestArtifactFilename(t *testing.T) {
	first := ArtifactFilename("https://example.com/page", "Example Page", "md")
	second := ArtifactFilename("https://example.com/page", "Example Page", "md")
	assert.Equal(t, first, second, "filename must be deterministic")
	assert.True(t, strings.HasPrefix(first, "example_com_"))
	assert.True(t, strings.HasSuffix(first, ".md"))

	otherTitle := ArtifactFilename("https://example.com/page", "Other Title", "md")
	assert.NotEqual(t, first, otherTitle, "title participates in the hash")

	otherURL := ArtifactFilename("https://example.com/other", "Example Page", "md")
	assert.NotEqual(t, first, otherURL, "url participates in the hash")

	dotted := ArtifactFilename("https://example.com/page", "Example Page", ".png")
	assert.True(t, strings.HasSuffix(dotted, ".png"))
	assert.False(t, strings.Contains(dotted, ".."), "leading dot on extension is stripped")

	bare := ArtifactFilename("https://example.com/page", "Example Page", "")
	assert.False(t, strings.Contains(bare, "."), "no extension means no dot")
}

func TestSafeHost(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain host", "https://example.com/path", "example_com"},
		{"www stripped", "https://www.example.com", "example_com"},
		{"subdomain kept", "https://docs.example.com", "docs_example_com"},
		{"dashes replaced", "https://my-site.io", "my_site_io"},
		{"port dropped", "https://example.com:8080/x", "example_com"},
		{"uppercase lowered", "https://EXAMPLE.COM", "example_com"},
		{"no host", "not a url", "unknown"},
		{"empty", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeHost(tt.url))
		})
	}
}
