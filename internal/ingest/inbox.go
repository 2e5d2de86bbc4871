package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoicebot/internal/core"
	"github.com/joseph-ayodele/invoicebot/internal/core/async"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Enqueuer is satisfied by *async.ProcessorQueue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// Inbox feeds files dropped into a directory to the processor queue and
// files them under processed/ or failed/ afterwards.
type Inbox struct {
	dir      string
	debounce time.Duration
	queue    Enqueuer
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewInbox(dir string, debounce time.Duration, queue Enqueuer, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{dir: dir, debounce: debounce, queue: queue, logger: logger, inFlight: map[string]struct{}{}}
}

// Run picks up files already present, then watches until ctx is done.
func (in *Inbox) Run(ctx context.Context) error {
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(in.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create inbox dirs: %w", err)
		}
	}

	events, errs, err := StartWatcher(ctx, WatchConfig{Dir: in.dir, Debounce: in.debounce}, in.logger)
	if err != nil {
		return err
	}

	existing, stats, err := ScanDirectory(in.dir, true,
		filepath.Join(in.dir, ProcessedDir), filepath.Join(in.dir, FailedDir))
	if err != nil {
		in.logger.Warn("inbox.scan.failed", "dir", in.dir, "error", err)
	}
	in.logger.Info("inbox.started", "dir", in.dir, "existing", stats.Matched)
	for _, p := range existing {
		in.submit(ctx, p)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			// only direct children; processed/ and failed/ live below dir
			if filepath.Dir(p) != filepath.Clean(in.dir) {
				continue
			}
			if _, err := os.Stat(p); err != nil {
				continue
			}
			in.submit(ctx, p)
		case err, ok := <-errs:
			if ok && err != nil {
				in.logger.Warn("inbox.watch.error", "error", err)
			}
		}
	}
}

func (in *Inbox) submit(ctx context.Context, path string) {
	in.mu.Lock()
	if _, busy := in.inFlight[path]; busy {
		in.mu.Unlock()
		return
	}
	in.inFlight[path] = struct{}{}
	in.mu.Unlock()

	err := in.queue.Enqueue(ctx, async.Job{Path: path, OnDone: in.done})
	if err != nil {
		in.release(path)
		if !errors.Is(err, context.Canceled) {
			in.logger.Error("inbox.enqueue.failed", "path", path, "error", err)
		}
	}
}

func (in *Inbox) done(job async.Job, res core.Result, err error) {
	defer in.release(job.Path)

	target := ProcessedDir
	if err != nil || res.ExtractedData == nil {
		target = FailedDir
	}
	dest := filepath.Join(in.dir, target, filepath.Base(job.Path))
	if _, statErr := os.Stat(dest); statErr == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s-%s%s", dest[:len(dest)-len(ext)], res.RunID.String()[:8], ext)
	}
	if mvErr := os.Rename(job.Path, dest); mvErr != nil {
		in.logger.Error("inbox.move.failed", "path", job.Path, "dest", dest, "error", mvErr)
		return
	}
	in.logger.Info("inbox.filed", "path", job.Path, "dest", dest, "run_id", res.RunID, "status", res.Status())
}

func (in *Inbox) release(path string) {
	in.mu.Lock()
	delete(in.inFlight, path)
	in.mu.Unlock()
}
