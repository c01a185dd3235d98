// Package normalize turns raw review markup into plain text suitable for
// indexing and embedding.
package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Clean strips markup, collapses whitespace and trims. It never fails: input
// that cannot be parsed as markup is treated as plain text, and empty input
// yields an empty string. Truncation to provider limits is the caller's job.
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := raw
	if strings.ContainsRune(raw, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
				s.Remove()
			})
			if body := doc.Find("body"); body.Length() > 0 {
				text = body.Text()
			} else {
				text = doc.Text()
			}
		}
	}

	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
