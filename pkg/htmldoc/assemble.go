package htmldoc

import (
	"regexp"
	"strings"
)

// Assemble builds one document out of separate html, css and js parts. An
// empty string stands for an absent part.
//
// CSS goes into a <style> block before the first </head>, falling back to
// just after the first <body ...> tag and finally to the start of the
// document. JS goes into a <script> block before the first </body>, or is
// appended when there is none.
func Assemble(html, css, js string) string {
	base := strings.TrimSpace(html)
	if base == "" {
		return ""
	}

	doc := base
	if !IsFullDocument(base) {
		doc = Normalize(base)
	}

	if c := strings.TrimSpace(css); c != "" {
		tag := "\n<style>\n" + c + "\n</style>\n"
		switch {
		case headCloseRe.MatchString(doc):
			doc = insertBefore(doc, headCloseRe, tag)
		case bodyOpenRe.MatchString(doc):
			doc = insertAfter(doc, bodyOpenRe, tag)
		default:
			doc = tag + doc
		}
	}

	if j := strings.TrimSpace(js); j != "" {
		tag := "\n<script>\n" + j + "\n</script>\n"
		if bodyCloseRe.MatchString(doc) {
			doc = insertBefore(doc, bodyCloseRe, tag)
		} else {
			doc += tag
		}
	}

	return doc
}

// insertBefore splices s in front of the first match of re. The caller has
// already checked that re matches.
func insertBefore(doc string, re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(doc)
	return doc[:loc[0]] + s + doc[loc[0]:]
}

func insertAfter(doc string, re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(doc)
	return doc[:loc[1]] + s + doc[loc[1]:]
}
