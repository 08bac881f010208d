package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/cancel"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/pipeline"
)

// Reruns the pipeline over failed (and optionally cancelled) documents,
// synchronously, one at a time. Old pages and content are purged per
// document before the rerun; extraction logs are kept.
func main() {
	dry := flag.Bool("dry-run", true, "Preview candidates without reprocessing")
	yes := flag.Bool("yes", false, "Confirm when dry-run=false")
	includeCancelled := flag.Bool("include-cancelled", false, "Also rerun cancelled documents")
	limit := flag.Int("limit", 0, "Max documents to rerun (0 = no limit)")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN must be set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}

	statuses := []string{models.StatusFailed}
	if *includeCancelled {
		statuses = append(statuses, models.StatusCancelled)
	}
	q := db.Where("status IN ?", statuses).Order("id")
	if *limit > 0 {
		q = q.Limit(*limit)
	}
	var docs []models.Document
	if err := q.Find(&docs).Error; err != nil {
		log.Fatalf("list documents failed: %v", err)
	}

	fmt.Printf("Found %d candidate documents (%v)\n", len(docs), statuses)
	for _, d := range docs {
		fmt.Printf(" - id=%d file=%s status=%s error=%q\n", d.ID, d.OriginalFilename, d.Status, d.ErrorMessage)
	}
	if *dry {
		fmt.Println("dry-run: nothing reprocessed. Use --dry-run=false --yes to execute.")
		return
	}
	if !*yes {
		fmt.Println("Pass --yes to proceed.")
		return
	}

	proc := pipeline.New(db, cancel.NewRegistry(), extractor.NewClient(
		os.Getenv("EXTRACTOR_API_URL"),
		os.Getenv("EXTRACTOR_API_KEY"),
		os.Getenv("EXTRACTOR_MODEL"),
	), pipeline.ConfigFromEnv())

	var ok, failed int
	for i := range docs {
		d := docs[i]
		log.Printf("reprocessing document #%d (%s)", d.ID, d.OriginalFilename)
		if proc.Reprocess(&d) {
			ok++
		} else {
			failed++
			log.Printf("reprocess failed for document #%d: %s", d.ID, d.ErrorMessage)
		}
	}
	fmt.Printf("reprocessed %d documents, %d failed\n", ok, failed)
}
