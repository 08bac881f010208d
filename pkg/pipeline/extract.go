package pipeline

import (
	"encoding/json"
	"image"
	"log"

	"github.com/disintegration/imaging"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/rotation"
)

// extractWithEscalation is an explicit two-attempt sequence, so "at most one
// escalation" holds structurally. The escalated attempt supersedes the first
// as the return value; both real backend calls stay in the audit log.
func (p *Processor) extractWithEscalation(doc *models.Document, page *models.Page, img image.Image) (extractor.Result, error) {
	first := p.attempt(doc, page, img, 0, page.DPI)
	if !first.Success || !p.shouldEscalate(first.Data) {
		return first, nil
	}

	// checkpoint immediately before the escalated re-render
	if p.registry.IsCancelled(doc.ID) {
		return cancelledResult(0), nil
	}

	log.Printf("low confidence on page %d of document #%d, retrying at %d dpi", page.PageNumber, doc.ID, p.cfg.HighDPI)
	high, err := p.renderAtDPI(doc, page, p.cfg.HighDPI)
	if err != nil {
		return extractor.Result{}, err
	}
	return p.attempt(doc, page, high, 1, p.cfg.HighDPI), nil
}

// attempt wraps one backend call between cancellation checkpoints. The
// post-call check exists specifically to catch a cancellation that arrived
// while the call was in flight; a synthesized cancelled result is not a
// backend attempt and is not logged.
func (p *Processor) attempt(doc *models.Document, page *models.Page, img image.Image, retryCount, dpi int) extractor.Result {
	if p.registry.IsCancelled(doc.ID) {
		return cancelledResult(retryCount)
	}

	res := p.extractor.Extract(img, retryCount)

	if p.registry.IsCancelled(doc.ID) {
		cancelled := cancelledResult(retryCount)
		cancelled.ProcessingTime = res.ProcessingTime
		cancelled.TokensUsed = res.TokensUsed
		return cancelled
	}

	p.logAttempt(doc, page, res, dpi)
	return res
}

func cancelledResult(retryCount int) extractor.Result {
	return extractor.Result{
		Success:    false,
		Error:      errCancelled.Error(),
		RetryCount: retryCount,
	}
}

// shouldEscalate reports whether the overall language confidence or any
// single block confidence falls below the configured threshold. A missing
// block confidence counts as 1.0.
func (p *Processor) shouldEscalate(data *extractor.PageData) bool {
	if data == nil {
		return false
	}
	if data.LanguageConfidence < p.cfg.ConfidenceThreshold {
		return true
	}
	for _, b := range data.ContentBlocks {
		if b.Confidence != nil && *b.Confidence < p.cfg.ConfidenceThreshold {
			return true
		}
	}
	return false
}

// renderAtDPI produces the same page again at the requested DPI. PDFs are
// re-rendered from source with the already-detected rotation re-applied;
// raster uploads have no resolution to escalate, so the corrected artifact
// is reused.
func (p *Processor) renderAtDPI(doc *models.Document, page *models.Page, dpi int) (image.Image, error) {
	if doc.FileType != models.FileTypePDF {
		return imaging.Open(page.ImagePath)
	}
	rdoc, err := p.renderer.Open(doc.StorePath)
	if err != nil {
		return nil, err
	}
	defer rdoc.Close()
	img, err := rdoc.Render(page.PageNumber, dpi)
	if err != nil {
		return nil, err
	}
	return rotation.Apply(flatten(img), page.AppliedRotation), nil
}

func (p *Processor) logAttempt(doc *models.Document, page *models.Page, res extractor.Result, dpi int) {
	reqData, _ := json.Marshal(map[string]int{
		"dpi":         dpi,
		"retry_count": res.RetryCount,
	})
	var respData []byte
	if res.Data != nil {
		respData, _ = json.Marshal(res.Data)
	}

	pageID := page.ID
	entry := models.ExtractionLog{
		DocumentID:     doc.ID,
		PageID:         &pageID,
		RequestData:    reqData,
		ResponseData:   respData,
		Success:        res.Success,
		ErrorMessage:   res.Error,
		ProcessingTime: res.ProcessingTime,
		TokensUsed:     res.TokensUsed,
		RetryCount:     res.RetryCount,
	}
	if err := p.db.Create(&entry).Error; err != nil {
		log.Printf("WARN record extraction log doc=%d page=%d: %v", doc.ID, page.PageNumber, err)
	}
}
