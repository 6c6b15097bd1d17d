package siteconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_FeedLinks(t *testing.T) {
	c := &Config{}

	assert.False(t, c.InFeed("https://example.com/a"))

	c.AddFeedLink("https://example.com/a")
	c.AddFeedLink("https://example.com/b")

	assert.True(t, c.InFeed("https://example.com/a"))
	assert.True(t, c.InFeed("https://example.com/b"))
	assert.False(t, c.InFeed("https://example.com/c"))
}

func TestConfig_AlreadyIndexed(t *testing.T) {
	c := &Config{AlreadyIndexedURLs: map[string]struct{}{
		"https://example.com/a": {},
	}}

	assert.True(t, c.AlreadyIndexed("https://example.com/a"))
	assert.False(t, c.AlreadyIndexed("https://example.com/b"))
}

func TestCommon_IsOtherRegisteredDomain(t *testing.T) {
	c := Common{OtherDomains: map[string]struct{}{"other.com": {}}}

	assert.True(t, c.IsOtherRegisteredDomain("other.com"))
	assert.False(t, c.IsOtherRegisteredDomain("unknown.com"))
}
