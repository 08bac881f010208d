package pipeline

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// Renderer turns a source PDF into page rasters. It is an interface so the
// pipeline can be exercised without MuPDF in tests.
type Renderer interface {
	Open(path string) (RenderedDoc, error)
}

// RenderedDoc is one open source document. Render takes a 1-indexed page
// number and the target DPI.
type RenderedDoc interface {
	PageCount() int
	Render(pageNumber, dpi int) (image.Image, error)
	Close() error
}

// FitzRenderer renders PDFs with go-fitz (MuPDF).
type FitzRenderer struct{}

func (FitzRenderer) Open(path string) (RenderedDoc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &fitzDoc{doc: doc}, nil
}

type fitzDoc struct {
	doc *fitz.Document
}

func (d *fitzDoc) PageCount() int { return d.doc.NumPage() }

func (d *fitzDoc) Render(pageNumber, dpi int) (image.Image, error) {
	img, err := d.doc.ImageDPI(pageNumber-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d at %d dpi: %w", pageNumber, dpi, err)
	}
	return img, nil
}

func (d *fitzDoc) Close() error { return d.doc.Close() }
