package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/cancel"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/extractor"
	"github.com/md-ryhan-uddin/document-extraction-ai-system/pkg/pipeline"
)

// Global DB handle for helper funcs
var db *gorm.DB

var verbose bool

var supportedExts = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".tif": true, ".tiff": true, ".bmp": true,
}

// preload cache keyed by original filename so rescans are idempotent
type preloadState struct {
	docsByFile map[string]uint
	mu         sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{docsByFile: make(map[string]uint, 1024)}
}

func (ps *preloadState) seen(name string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	_, ok := ps.docsByFile[name]
	return ok
}

func (ps *preloadState) put(name string, id uint) {
	ps.mu.Lock()
	ps.docsByFile[name] = id
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a drop directory for PDFs and scans, registers them as
// documents, runs the extraction pipeline, optional watch mode.
func main() {
	_ = godotenv.Load()

	dirFlag := flag.String("dir", "inbox", "directory to scan for documents")
	dryRun := flag.Bool("dry-run", false, "Skip all DB queries and writes; just list candidate files")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.Parse()

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listDocumentFiles(*dirFlag)
		log.Printf("Found %d candidate files", len(files))
		for _, f := range files {
			logV("candidate %s", f)
		}
		return
	}

	db = mustInitDBFromEnv()
	proc := pipeline.New(db, cancel.NewRegistry(), extractor.NewClient(
		os.Getenv("EXTRACTOR_API_URL"),
		os.Getenv("EXTRACTOR_API_KEY"),
		os.Getenv("EXTRACTOR_MODEL"),
	), pipeline.ConfigFromEnv())

	ps := preloadAll()
	log.Printf("Preloaded: documents=%d", len(ps.docsByFile))

	files := listDocumentFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, proc, ps, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, proc, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadAll fetches existing documents to minimize per-file queries.
func preloadAll() *preloadState {
	ps := newPreloadState()
	var docs []models.Document
	if err := db.Find(&docs).Error; err == nil {
		for _, d := range docs {
			ps.docsByFile[d.OriginalFilename] = d.ID
		}
	}
	return ps
}

func listDocumentFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(name))]
}

func watchDirectory(dir string, proc *pipeline.Processor, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files; a file is taken once its
		// last event is old enough that the writer is presumed done
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	go runWorkerPool(dir, proc, ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

// worker pool orchestrator
func runWorkerPool(dir string, proc *pipeline.Processor, ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				ingestSingleFile(dir, name, proc, ps)
			}
		}()
	}
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// ingestSingleFile registers one dropped file as a document and runs the
// pipeline on it. Idempotent per original filename.
func ingestSingleFile(dir, name string, proc *pipeline.Processor, ps *preloadState) {
	if ps.seen(name) {
		logV("SKIP already ingested %s", name)
		return
	}
	srcPath := filepath.Join(dir, name)
	ext := strings.ToLower(filepath.Ext(name))

	fileType := models.FileTypeImage
	if ext == ".pdf" {
		fileType = models.FileTypePDF
		if err := api.ValidateFile(srcPath, nil); err != nil {
			log.Printf("SKIP invalid pdf %s: %v", name, err)
			return
		}
	}

	fi, err := os.Stat(srcPath)
	if err != nil {
		log.Printf("ERROR stat %s: %v", name, err)
		return
	}

	// copy into the store before creating the row; the inbox copy is moved
	// aside afterwards so rescans do not pick it up again
	storeDir := filepath.Join(uploadBaseDir(), "documents")
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		log.Printf("ERROR mkdir %s: %v", storeDir, err)
		return
	}
	storePath := filepath.Join(storeDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), name))
	if err := copyFile(srcPath, storePath); err != nil {
		log.Printf("ERROR copy %s: %v", name, err)
		return
	}

	doc := models.Document{
		Title:            strings.TrimSuffix(name, ext),
		OriginalFilename: name,
		StorePath:        storePath,
		FileType:         fileType,
		FileSize:         fi.Size(),
		Status:           models.StatusUploaded,
	}
	if err := db.Create(&doc).Error; err != nil {
		log.Printf("ERROR create document %s: %v", name, err)
		return
	}
	ps.put(name, doc.ID)
	log.Printf("NEW document id=%d file=%s type=%s", doc.ID, name, fileType)

	if proc.Process(&doc) {
		log.Printf("DONE document id=%d pages=%d", doc.ID, doc.TotalPages)
	} else {
		log.Printf("FAIL document id=%d status=%s: %s", doc.ID, doc.Status, doc.ErrorMessage)
	}

	if err := moveToIngested(srcPath, name); err != nil {
		log.Printf("WARN failed to move ingested file %s: %v", name, err)
	}
}

func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}

// moveToIngested moves a consumed inbox file into <inbox>/ingested/<name>.
// It attempts an atomic rename and falls back to copy+remove when necessary.
func moveToIngested(srcFullPath, name string) error {
	ingestedDir := filepath.Join(filepath.Dir(srcFullPath), "ingested")
	if err := os.MkdirAll(ingestedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(ingestedDir, name)
	if err := os.Rename(srcFullPath, dst); err == nil {
		return nil
	}
	return copyRemove(srcFullPath, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

func copyRemove(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
