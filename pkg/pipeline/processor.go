// Package pipeline drives the document lifecycle: render pages, correct
// rotation, extract structured content with a single confidence-triggered
// escalation, and persist the results. Cancellation is cooperative and
// checkpoint-based; nothing committed before a checkpoint is rolled back.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"gorm.io/gorm"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/cancel"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/rotation"
)

var errCancelled = errors.New("processing cancelled by user")

// Extractor is the structured-output backend contract the pipeline needs.
type Extractor interface {
	Extract(img image.Image, retryCount int) extractor.Result
}

// Processor runs the per-document state machine
// uploaded -> processing -> completed | failed | cancelled.
type Processor struct {
	db        *gorm.DB
	registry  *cancel.Registry
	extractor Extractor
	renderer  Renderer
	cfg       Config
}

func New(db *gorm.DB, registry *cancel.Registry, ex Extractor, cfg Config) *Processor {
	return &Processor{
		db:        db,
		registry:  registry,
		extractor: ex,
		renderer:  FitzRenderer{},
		cfg:       cfg,
	}
}

// WithRenderer swaps the PDF renderer. Used by tests and tools.
func (p *Processor) WithRenderer(r Renderer) *Processor {
	p.renderer = r
	return p
}

// Process runs the full pipeline for one document and reports whether it
// completed. Every terminal path records elapsed time and clears the
// cancellation flag so a stale flag can never leak into a reprocess.
// Errors never escape this boundary; they end up in the document row.
func (p *Processor) Process(doc *models.Document) bool {
	start := time.Now()
	log.Printf("processing started: document #%d %q (%s)", doc.ID, doc.Title, doc.FileType)

	// stale flag from an earlier cancelled run must not kill this one
	p.registry.Clear(doc.ID)

	doc.Status = models.StatusProcessing
	doc.ErrorMessage = ""
	if err := p.db.Save(doc).Error; err != nil {
		log.Printf("ERROR save processing status doc=%d: %v", doc.ID, err)
	}

	pages, err := p.run(doc)
	elapsed := time.Since(start).Seconds()

	switch {
	case errors.Is(err, errCancelled):
		doc.Status = models.StatusCancelled
		doc.ErrorMessage = err.Error()
		doc.ProcessingTime = elapsed
		if err := p.db.Save(doc).Error; err != nil {
			log.Printf("ERROR save cancelled status doc=%d: %v", doc.ID, err)
		}
		p.registry.Clear(doc.ID)
		log.Printf("processing cancelled: document #%d after %.2fs", doc.ID, elapsed)
		return false
	case err != nil:
		doc.Status = models.StatusFailed
		doc.ErrorMessage = err.Error()
		doc.ProcessingTime = elapsed
		if err := p.db.Save(doc).Error; err != nil {
			log.Printf("ERROR save failed status doc=%d: %v", doc.ID, err)
		}
		p.registry.Clear(doc.ID)
		log.Printf("processing failed: document #%d: %v", doc.ID, err)
		return false
	}

	now := time.Now()
	doc.TotalPages = len(pages)
	doc.Status = models.StatusCompleted
	doc.ProcessedAt = &now
	doc.ProcessingTime = elapsed
	if err := p.db.Save(doc).Error; err != nil {
		log.Printf("ERROR save completed status doc=%d: %v", doc.ID, err)
	}
	p.registry.Clear(doc.ID)
	log.Printf("processing completed: document #%d pages=%d time=%.2fs", doc.ID, doc.TotalPages, elapsed)
	return true
}

// Reprocess discards all existing pages and content for the document, then
// reruns the pipeline from scratch. Extraction logs survive.
func (p *Processor) Reprocess(doc *models.Document) bool {
	if err := DeleteDocumentPages(p.db, doc.ID); err != nil {
		log.Printf("ERROR purge pages for reprocess doc=%d: %v", doc.ID, err)
		return false
	}
	doc.Status = models.StatusUploaded
	doc.ErrorMessage = ""
	doc.TotalPages = 0
	doc.ProcessedAt = nil
	doc.ProcessingTime = 0
	if err := p.db.Save(doc).Error; err != nil {
		log.Printf("ERROR reset document for reprocess doc=%d: %v", doc.ID, err)
		return false
	}
	return p.Process(doc)
}

func (p *Processor) run(doc *models.Document) ([]models.Page, error) {
	// checkpoint A: pre-flight
	if p.registry.IsCancelled(doc.ID) {
		return nil, errCancelled
	}

	var (
		pages []models.Page
		err   error
	)
	switch doc.FileType {
	case models.FileTypePDF:
		pages, err = p.processPDF(doc)
	case models.FileTypeImage:
		pages, err = p.processImage(doc)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", doc.FileType)
	}
	if err != nil {
		return pages, err
	}

	// checkpoint C: a cancellation that landed during the page loop still
	// wins, even though earlier pages are already persisted
	if p.registry.IsCancelled(doc.ID) {
		return pages, errCancelled
	}
	return pages, nil
}

func (p *Processor) processPDF(doc *models.Document) ([]models.Page, error) {
	rdoc, err := p.renderer.Open(doc.StorePath)
	if err != nil {
		return nil, err
	}
	defer rdoc.Close()

	total := rdoc.PageCount()
	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages: %s", doc.StorePath)
	}

	var pages []models.Page
	for n := 1; n <= total; n++ {
		// checkpoint B: re-check before paying the render cost of each page
		if p.registry.IsCancelled(doc.ID) {
			log.Printf("cancellation detected before rendering page %d of document #%d", n, doc.ID)
			return pages, errCancelled
		}
		img, err := rdoc.Render(n, p.cfg.DefaultDPI)
		if err != nil {
			return pages, err
		}
		log.Printf("processing page %d/%d of document #%d", n, total, doc.ID)
		page, err := p.processPage(doc, n, img)
		if err != nil {
			return pages, err
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

func (p *Processor) processImage(doc *models.Document) ([]models.Page, error) {
	img, err := imaging.Open(doc.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", doc.StorePath, err)
	}
	page, err := p.processPage(doc, 1, img)
	if err != nil {
		return nil, err
	}
	return []models.Page{*page}, nil
}

// processPage runs the per-page pipeline: normalize, correct rotation,
// persist both artifacts, extract, store content. A page whose extraction
// hard-fails is kept with processed=false and no content rows.
func (p *Processor) processPage(doc *models.Document, pageNumber int, img image.Image) (*models.Page, error) {
	if p.registry.IsCancelled(doc.ID) {
		return nil, errCancelled
	}

	// flatten transparency onto white and normalize the encoding; this is
	// kept unmodified as the original artifact
	original := flatten(img)
	corrected, angle := rotation.DetectAndCorrect(original)

	page := models.Page{
		DocumentID:       doc.ID,
		PageNumber:       pageNumber,
		Width:            corrected.Bounds().Dx(),
		Height:           corrected.Bounds().Dy(),
		DetectedRotation: angle,
		AppliedRotation:  angle,
		DPI:              p.cfg.DefaultDPI,
		Processed:        false,
	}
	if err := p.db.Create(&page).Error; err != nil {
		return nil, fmt.Errorf("create page %d: %w", pageNumber, err)
	}

	origPath := filepath.Join(p.cfg.MediaDir, "pages", "original", fmt.Sprintf("page_original_%d_%d.jpg", doc.ID, pageNumber))
	corrPath := filepath.Join(p.cfg.MediaDir, "pages", fmt.Sprintf("page_%d_%d.jpg", doc.ID, pageNumber))
	if err := saveJPEG(original, origPath); err != nil {
		return nil, fmt.Errorf("save original page %d: %w", pageNumber, err)
	}
	if err := saveJPEG(corrected, corrPath); err != nil {
		return nil, fmt.Errorf("save corrected page %d: %w", pageNumber, err)
	}
	page.OriginalImagePath = origPath
	page.ImagePath = corrPath
	if err := p.db.Save(&page).Error; err != nil {
		return nil, fmt.Errorf("save page %d artifacts: %w", pageNumber, err)
	}

	// checkpoint before the expensive, billed call
	if p.registry.IsCancelled(doc.ID) {
		return nil, errCancelled
	}

	res, err := p.extractWithEscalation(doc, &page, corrected)
	if err != nil {
		return nil, err
	}
	if res.Success {
		if err := p.persistExtraction(&page, res.Data); err != nil {
			return nil, err
		}
		page.Processed = true
		if err := p.db.Save(&page).Error; err != nil {
			return nil, fmt.Errorf("mark page %d processed: %w", pageNumber, err)
		}
	} else {
		log.Printf("extraction failed on page %d of document #%d: %s", pageNumber, doc.ID, res.Error)
	}
	return &page, nil
}

func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func saveJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return imaging.Save(img, path, imaging.JPEGQuality(95))
}
