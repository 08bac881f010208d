package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/cancel"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/pipeline"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

var (
	registry *cancel.Registry
	proc     *pipeline.Processor
	queue    *pipeline.Queue
)

func main() {
	// Load ./.env if present before reading vars; existing env wins.
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./doc-extract migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	registry = cancel.NewRegistry()
	client := extractor.NewClient(
		os.Getenv("EXTRACTOR_API_URL"),
		os.Getenv("EXTRACTOR_API_KEY"),
		os.Getenv("EXTRACTOR_MODEL"),
	)
	proc = pipeline.New(db, registry, client, pipeline.ConfigFromEnv())

	workers := 0
	if v := os.Getenv("PIPELINE_WORKERS"); v != "" {
		workers, _ = strconv.Atoi(v)
	}
	queue = pipeline.NewQueue(proc, workers, 0)
	defer queue.Close()

	r := gin.Default()
	setupRoutes(r)

	addr := ":8081"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
