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
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/pipeline"
)

// Recovery tool: force-cancels documents stuck in processing (e.g. after a
// crashed worker) directly at the DB level. With --delete-all it wipes every
// document and its content instead.
func main() {
	dry := flag.Bool("dry-run", true, "Preview actions without modifying the DB")
	yes := flag.Bool("yes", false, "Confirm destructive action when dry-run=false")
	deleteAll := flag.Bool("delete-all", false, "Delete ALL documents and their content instead of cancelling")
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

	if *deleteAll {
		var total int64
		db.Model(&models.Document{}).Count(&total)
		fmt.Println("Planned actions:")
		fmt.Printf(" - DELETE all %d documents with their pages, blocks, cells, fields and logs\n", total)
		if *dry {
			fmt.Println("dry-run: no changes made. Use --dry-run=false --yes to execute.")
			return
		}
		if !*yes {
			fmt.Println("Destructive! Pass --yes to proceed.")
			return
		}
		var ids []uint
		if err := db.Model(&models.Document{}).Pluck("id", &ids).Error; err != nil {
			log.Fatalf("list documents failed: %v", err)
		}
		for _, id := range ids {
			if err := pipeline.DeleteDocumentPages(db, id); err != nil {
				log.Fatalf("purge pages for document %d failed: %v", id, err)
			}
		}
		if err := db.Exec("DELETE FROM extraction_logs").Error; err != nil {
			log.Fatalf("delete logs failed: %v", err)
		}
		if err := db.Exec("DELETE FROM documents").Error; err != nil {
			log.Fatalf("delete documents failed: %v", err)
		}
		fmt.Printf("deleted %d documents\n", len(ids))
		return
	}

	var stuck int64
	db.Model(&models.Document{}).Where("status = ?", models.StatusProcessing).Count(&stuck)
	fmt.Println("Planned actions:")
	fmt.Printf(" - Set status=cancelled on %d documents currently marked processing\n", stuck)
	if *dry {
		fmt.Println("dry-run: no changes made. Use --dry-run=false --yes to execute.")
		return
	}
	if !*yes {
		fmt.Println("Destructive! Pass --yes to proceed.")
		return
	}
	res := db.Model(&models.Document{}).
		Where("status = ?", models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.StatusCancelled,
			"error_message": "force-cancelled by administrator",
		})
	if res.Error != nil {
		log.Fatalf("force cancel failed: %v", res.Error)
	}
	fmt.Printf("force-cancelled %d documents\n", res.RowsAffected)
}
