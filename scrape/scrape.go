// Package scrape finds a favicon link in an HTML page.
//
// It is a best-effort scan over untrusted markup: the x/net/html tokenizer is
// used as a streaming tag scanner and no document tree is built.
package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// MaxPreferredSize is the largest declared icon size that takes part in the
// size based selection.
const MaxPreferredSize = 96

var (
	iconExtRegex = regexp.MustCompile(`(?i)\.(?:png|jpg|svg|gif|ico)`)
	leadingInt   = regexp.MustCompile(`^\d+`)
)

// Candidate is one <link rel="icon"> found in a page.
type Candidate struct {
	Href string
	// Size is the leading integer of the sizes attribute, 0 when absent.
	Size int
}

// Candidates returns the icon links of page in document order, without any
// filtering.
func Candidates(page string) []Candidate {
	var out []Candidate

	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input, either way we are done
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "link" || !hasAttr {
				continue
			}
			if c, ok := readLink(z); ok {
				out = append(out, c)
			}
		}
	}
}

func readLink(z *html.Tokenizer) (Candidate, bool) {
	var c Candidate
	var isIcon bool
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "rel":
			isIcon = isIconRel(string(val))
		case "href":
			c.Href = strings.TrimSpace(string(val))
		case "sizes":
			c.Size = parseSize(string(val))
		}
		if !more {
			break
		}
	}
	return c, isIcon && c.Href != ""
}

// isIconRel accepts "icon" and "shortcut icon", ignoring case, stray quotes
// and extra whitespace.
func isIconRel(rel string) bool {
	rel = strings.ToLower(strings.Trim(rel, "\"' \t\r\n"))
	rel = strings.Join(strings.Fields(rel), " ")
	return rel == "icon" || rel == "shortcut icon"
}

func parseSize(sizes string) int {
	m := leadingInt.FindString(strings.TrimSpace(sizes))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Select applies the selection heuristic: candidates whose href has no image
// extension are dropped; among the rest the largest declared size not above
// MaxPreferredSize wins, otherwise the first one in document order.
func Select(candidates []Candidate) (Candidate, bool) {
	var first, best Candidate
	var haveFirst, haveBest bool

	for _, c := range candidates {
		if !iconExtRegex.MatchString(c.Href) {
			continue
		}
		if !haveFirst {
			first, haveFirst = c, true
		}
		if c.Size > 0 && c.Size <= MaxPreferredSize && (!haveBest || c.Size > best.Size) {
			best, haveBest = c, true
		}
	}

	if haveBest {
		return best, true
	}
	return first, haveFirst
}

// Resolve turns href into an absolute URL on domain.
func Resolve(href, domain string) string {
	switch {
	case strings.Contains(href, "://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "http:" + href
	case !strings.HasPrefix(href, "/"):
		href = "/" + href
	}
	return "http://" + domain + href
}

// Scrape returns the absolute URL of the preferred icon of page, or false
// when the page declares none.
func Scrape(page, domain string) (string, bool) {
	c, ok := Select(Candidates(page))
	if !ok {
		return "", false
	}
	return Resolve(c.Href, domain), true
}
