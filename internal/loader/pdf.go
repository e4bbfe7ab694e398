package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/documentloaders"

	"docqa/internal/domain"
)

func parsePDF(ctx context.Context, path string) ([]domain.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	pages := make([]domain.Page, 0, len(docs))
	for i, d := range docs {
		number := i + 1
		switch v := d.Metadata["page"].(type) {
		case int:
			number = v
		case float64:
			number = int(v)
		}
		pages = append(pages, domain.Page{Number: number, Text: d.PageContent})
	}
	return pages, nil
}
