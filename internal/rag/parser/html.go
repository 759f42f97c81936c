package parser

import (
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
)

// parseHTML extracts the main article body with Readability, falling back
// to the full document, then converts to Markdown so chunking sees prose
// instead of markup. docURL anchors relative links and may be empty.
func parseHTML(data []byte, docURL string) (string, error) {
	html := string(data)

	base, _ := url.Parse(docURL)
	if base == nil {
		base, _ = url.Parse("about:blank")
	}

	articleHTML := html
	var title string
	if art, err := readability.FromReader(strings.NewReader(html), base); err == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML = art.Content
		title = strings.TrimSpace(art.Title)
	}

	md, err := htmltomarkdown.ConvertString(articleHTML)
	if err != nil {
		return "", err
	}
	md = strings.TrimSpace(md)
	if title != "" && !strings.HasPrefix(md, "# ") {
		md = "# " + title + "\n\n" + md
	}
	return md, nil
}
