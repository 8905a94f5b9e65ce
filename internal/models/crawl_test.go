package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlRequestIsBatch(t *testing.T) {
	assert.False(t, (&CrawlRequest{URL: "https://example.com"}).IsBatch())
	assert.False(t, (&CrawlRequest{URLs: []string{"https://a.example"}}).IsBatch(), "a single-element list is not a batch")
	assert.True(t, (&CrawlRequest{URLs: []string{"https://a.example", "https://b.example"}}).IsBatch())
}

func TestCrawlRequestValidate(t *testing.T) {
	require.NoError(t, (&CrawlRequest{URL: "https://example.com"}).Validate())
	require.NoError(t, (&CrawlRequest{URLs: []string{"https://a.example"}}).Validate())

	assert.Error(t, (&CrawlRequest{}).Validate(), "a url or url list is required")
	assert.Error(t, (&CrawlRequest{URL: "https://example.com", Options: CrawlOptions{Depth: -1}}).Validate())
	assert.Error(t, (&CrawlRequest{URL: "https://example.com", Options: CrawlOptions{MaxPages: -1}}).Validate())
}

func TestFailedCrawl(t *testing.T) {
	result := FailedCrawl("https://example.com", ErrorKindNavigationTimeout, assert.AnError)

	assert.False(t, result.Success)
	assert.Equal(t, "https://example.com", result.URL)
	assert.Equal(t, ErrorKindNavigationTimeout, result.ErrorKind)
	assert.Equal(t, assert.AnError.Error(), result.ErrorMessage)

	// nil error leaves the message empty
	result = FailedCrawl("https://example.com", ErrorKindFatal, nil)
	assert.Empty(t, result.ErrorMessage)
}
