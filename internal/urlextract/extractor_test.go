package urlextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Empty(t *testing.T) {
	assert.Empty(t, Extract(""))
	assert.NotNil(t, Extract(""))
	assert.Empty(t, Extract("This is a simple message with no links in it. Just some regular text."))
}

func TestExtract_IgnoresMalformed(t *testing.T) {
	inputs := []string{
		"this is not a url: example.com",
		"email@example.com is not a url",
		"http:/missingaslash.com",
		"ftp//wrongprotocol.org",
		"just.some.text",
		"thisisnotwww.example.com",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			assert.Empty(t, Extract(input))
		})
	}
}

func TestExtract_SingleURL(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"A simple http url: http://example.com", "http://example.com"},
		{"A secure https url: https://example.com", "https://example.com"},
		{"A www url: www.example.com", "www.example.com"},
		{"An ftp url: ftp://files.example.com", "ftp://files.example.com"},
		{"A url with a path https://example.com/path/to/resource", "https://example.com/path/to/resource"},
		{"A url with query params https://example.com/search?q=test&p=1", "https://example.com/search?q=test&p=1"},
		{"A url with a fragment https://example.com/page#section-one", "https://example.com/page#section-one"},
		{"A url with a port http://localhost:8080/api", "http://localhost:8080/api"},
		{"Many subdomains www.sub.domain.example.co.uk/page", "www.sub.domain.example.co.uk/page"},
		{"Mixed case HTTP://EXAMPLE.COM/Path", "HTTP://EXAMPLE.COM/Path"},
		{"A url in the middle, like https://middle.com, is a test", "https://middle.com"},
		{"A test with a url at the end www.end.com", "www.end.com"},
		{"Check http://phish.example", "http://phish.example"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, []string{tt.expected}, Extract(tt.text))
		})
	}
}

func TestExtract_MultipleURLs(t *testing.T) {
	text := "Here are some links: https://one.com,www.two.net\nand ftp://three.io."

	assert.ElementsMatch(t, []string{"https://one.com", "www.two.net", "ftp://three.io"}, Extract(text))
}

func TestExtract_TrailingPunctuation(t *testing.T) {
	text := "Check these links: (https://example.com). Is www.test.com/path?q=1. a good site? Visit http://another.com, please."

	assert.Equal(t, []string{"https://example.com", "www.test.com/path?q=1", "http://another.com"}, Extract(text))
}

func TestExtract_KeepsDuplicates(t *testing.T) {
	assert.Equal(t, []string{"http://a.com", "http://a.com"}, Extract("http://a.com and again http://a.com"))
}

func TestExtractor_ExtractURLs(t *testing.T) {
	assert.Equal(t, []string{"https://example.com/path/to/resource?and=params"},
		Extractor{}.ExtractURLs("https://example.com/path/to/resource?and=params"))
}
