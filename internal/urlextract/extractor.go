package urlextract

import "regexp"

// urlPattern matches http, https and ftp URLs as well as bare www. hosts. The
// final character class excludes trailing punctuation such as '.', ',' and ')'.
var urlPattern = regexp.MustCompile(`(?i)\b((?:(?:https?|ftp)://|www\.)[\w\-.~:/?#\[\]@!$&'()*+;=%]*[\w\-~/?#\[\]@!$&'(*+=%])`)

// Extract returns every URL found in text, in order of appearance.
// Duplicates are kept; callers collapse them when needed.
func Extract(text string) []string {
	if text == "" {
		return []string{}
	}
	matches := urlPattern.FindAllStringSubmatch(text, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m[1])
	}
	return urls
}

// Extractor adapts Extract to an injectable dependency.
type Extractor struct{}

// ExtractURLs implements the service layer's URL extraction contract.
func (Extractor) ExtractURLs(text string) []string {
	return Extract(text)
}
