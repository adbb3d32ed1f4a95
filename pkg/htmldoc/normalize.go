// Package htmldoc turns pasted or imported prototype markup into a complete
// HTML document that can be previewed, downloaded or shared.
//
// Anchors are located with plain text search, not an HTML parser, so markup
// inside comments or script strings can be mistaken for a real tag.
package htmldoc

import (
	"regexp"
	"strings"
)

var (
	fullDocumentRe = regexp.MustCompile(`(?i)<html[\s>]|<!doctype`)
	headCloseRe    = regexp.MustCompile(`(?i)</head>`)
	bodyOpenRe     = regexp.MustCompile(`(?i)<body[^>]*>`)
	bodyCloseRe    = regexp.MustCompile(`(?i)</body>`)
)

const (
	shellHead = `<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>Prototype</title>
  <style>body{font-family:system-ui,-apple-system,Segoe UI,Roboto,sans-serif;padding:18px}</style>
</head>
<body>
`
	shellTail = `
</body>
</html>`
)

// IsFullDocument reports whether s already carries an <html> tag or a
// doctype declaration.
func IsFullDocument(s string) bool {
	return fullDocumentRe.MatchString(s)
}

// Normalize returns raw as a full HTML document. Empty input yields "", full
// documents come back trimmed, and fragments are wrapped in a minimal shell.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if IsFullDocument(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(shellHead) + len(s) + len(shellTail))
	b.WriteString(shellHead)
	b.WriteString(s)
	b.WriteString(shellTail)
	return b.String()
}
