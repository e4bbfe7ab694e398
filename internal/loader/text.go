package loader

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"docqa/internal/domain"
)

func parseText(_ context.Context, path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Text: strings.ToValidUTF8(string(data), "�")}}, nil
}

func parseMarkdown(_ context.Context, path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	text, err := htmlToText(markdown.Render(p.Parse(data), renderer))
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Text: text}}, nil
}

func parseHTML(_ context.Context, path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := htmlToText(data)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Text: text}}, nil
}

// blockElements get a trailing newline so paragraphs survive text extraction.
const blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, br, tr, pre, blockquote, section, article"

func htmlToText(raw []byte) (string, error) {
	clean := bluemonday.UGCPolicy().SanitizeBytes(raw)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(clean))
	if err != nil {
		return "", err
	}
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return normalizeLines(doc.Text()), nil
}

// normalizeLines trims every line and collapses runs of blank lines.
func normalizeLines(s string) string {
	var b strings.Builder
	blank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				b.WriteString("\n")
			}
			blank = true
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		blank = false
	}
	return strings.TrimSpace(b.String())
}
