// Package parser implements C5: (bytes, content_type, filename) -> a single
// normalized plain-text string, ready for the chunker.
package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"ragforge/internal/ragdomain"
)

// Parse dispatches on contentType and returns normalized text. filename is
// used for error reporting and, for HTML, as the base URL for relative links.
func Parse(data []byte, contentType, filename string) (string, error) {
	var (
		raw string
		err error
	)
	switch normalizeContentType(contentType) {
	case "text/plain":
		raw, err = parsePlainText(data)
	case "application/pdf":
		raw, err = parsePDF(data)
	case "text/markdown":
		raw, err = parseMarkdown(data)
	case "text/html", "application/xhtml+xml":
		raw, err = parseHTML(data, filename)
	case "audio/wav", "audio/x-wav", "audio/wave":
		raw, err = parseAudio(data)
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		raw, err = parseDocx(data)
	case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		raw, err = parsePptx(data)
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		raw, err = parseXlsx(data)
	default:
		return "", ragdomain.New(ragdomain.KindUnsupportedType, "Parse",
			fmt.Sprintf("unsupported content type %q", contentType), nil)
	}
	if err != nil {
		return "", ragdomain.New(ragdomain.KindParseError, "Parse",
			fmt.Sprintf("decode %s failed", filename), err)
	}
	return normalize(raw), nil
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	switch ct {
	case "text/x-markdown", "text/markdown":
		return "text/markdown"
	}
	return ct
}

func parsePlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("invalid UTF-8")
	}
	return string(data), nil
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(content)
		buf.WriteString("\n\n")
	}
	return buf.String(), nil
}

func parseMarkdown(data []byte) (string, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(data))
	var buf strings.Builder
	err := gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		switch n.Kind() {
		case gast.KindText:
			if entering {
				t := n.(*gast.Text)
				buf.Write(t.Segment.Value(data))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteString("\n")
				}
			}
		case gast.KindParagraph, gast.KindHeading, gast.KindListItem:
			if !entering {
				buf.WriteString("\n\n")
			}
		}
		return gast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parseDocx(data []byte) (string, error) {
	return extractOOXMLText(data, "word/document.xml", []string{"w:t"})
}

func parsePptx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		text, err := extractXMLRunText(f, []string{"a:t"})
		if err != nil {
			return "", err
		}
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}
	return buf.String(), nil
}

func parseXlsx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		return extractXMLRunText(f, []string{"t"})
	}
	return "", nil
}

func extractOOXMLText(data []byte, member string, tags []string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		return extractXMLRunText(f, tags)
	}
	return "", fmt.Errorf("missing %s in archive", member)
}

func extractXMLRunText(f *zip.File, tags []string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[localName(t)] = true
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var buf strings.Builder
	capture := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if want[el.Name.Local] {
				capture = true
			}
		case xml.EndElement:
			if want[el.Name.Local] {
				capture = false
				buf.WriteString(" ")
			}
		case xml.CharData:
			if capture {
				buf.Write(el)
			}
		}
	}
	return buf.String(), nil
}

func localName(qualified string) string {
	if idx := strings.Index(qualified, ":"); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}

var (
	zeroWidthRe  = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}]`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe   = regexp.MustCompile(`[ \t]{2,}`)
)

// normalize applies the shared post-decode cleanup: strip zero-width
// characters, collapse long newline/space runs, trim edges, while
// preserving double-newline paragraph breaks as chunker hints.
func normalize(s string) string {
	s = zeroWidthRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
