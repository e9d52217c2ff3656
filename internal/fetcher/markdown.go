package fetcher

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// nonContentSelectors are removed before conversion.
const nonContentSelectors = "script, style, noscript, svg, iframe, nav, footer, form, template"

// Converter renders HTML as markdown-like text that keeps listing links.
type Converter struct {
	// MinChars below which the readability fallback is tried.
	MinChars int
}

// Convert renders page HTML. Relative links are resolved against pageURL.
func (c Converter) Convert(html, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonContentSelectors).Remove()

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	w := &markdownWriter{base: base}
	w.walk(root)
	text := w.String()

	if len(text) >= c.MinChars {
		return text, nil
	}

	if fallback := readabilityText(html, base); len(fallback) > len(text) {
		return fallback, nil
	}
	return text, nil
}

// readabilityText extracts the main text block. Used only when the selector
// walk produced too little.
func readabilityText(html string, base *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

type markdownWriter struct {
	sb   strings.Builder
	base *url.URL
}

func (w *markdownWriter) walk(s *goquery.Selection) {
	s.Contents().Each(func(_ int, n *goquery.Selection) {
		switch name := goquery.NodeName(n); name {
		case "#text":
			w.inline(n.Text())
		case "a":
			w.link(n)
		case "img":
			if alt, ok := n.Attr("alt"); ok {
				w.inline(alt)
			}
		case "h1", "h2", "h3", "h4", "h5", "h6":
			w.block(strings.Repeat("#", int(name[1]-'0')) + " " + collapse(n.Text()))
		case "li":
			w.newline()
			w.sb.WriteString("- ")
			w.walk(n)
			w.newline()
		case "br":
			w.newline()
		case "p", "div", "section", "article", "main", "header", "ul", "ol", "tr", "table":
			w.newline()
			w.walk(n)
			w.newline()
		default:
			w.walk(n)
		}
	})
}

func (w *markdownWriter) link(n *goquery.Selection) {
	text := collapse(n.Text())
	if text == "" {
		text = collapse(n.Find("img").AttrOr("alt", ""))
	}

	href, ok := n.Attr("href")
	if !ok || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		w.inline(text)
		return
	}

	ref, err := w.base.Parse(strings.TrimSpace(href))
	if err != nil || text == "" {
		w.inline(text)
		return
	}

	w.inline("[" + text + "](" + ref.String() + ")")
}

func (w *markdownWriter) inline(text string) {
	text = collapse(text)
	if text == "" {
		return
	}
	if w.sb.Len() > 0 {
		last := w.sb.String()[w.sb.Len()-1]
		if last != '\n' && last != ' ' {
			w.sb.WriteByte(' ')
		}
	}
	w.sb.WriteString(text)
}

func (w *markdownWriter) block(text string) {
	w.newline()
	w.sb.WriteString(text)
	w.newline()
}

func (w *markdownWriter) newline() {
	if w.sb.Len() > 0 {
		w.sb.WriteByte('\n')
	}
}

// String trims every line and squeezes runs of blank lines.
func (w *markdownWriter) String() string {
	lines := strings.Split(w.sb.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == "-" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
