// Package uploader drives the upload pipeline: it feeds scanned files to a
// bounded pool of workers, each of which identifies, optionally pre-checks
// and uploads one file end-to-end, and folds every outcome into a run
// summary.
package uploader

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/immichup/internal/asset"
	"github.com/dmitrijs2005/immichup/internal/immich"
	"github.com/dmitrijs2005/immichup/internal/logging"
	"github.com/dmitrijs2005/immichup/internal/scan"
)

// DefaultConcurrency is the worker-pool size used when the caller does not
// set one.
const DefaultConcurrency = 10

// Client is the slice of the remote API the pipeline needs. *immich.Client
// implements it; tests substitute instrumented fakes.
type Client interface {
	Ping(ctx context.Context) error
	CheckExisting(ctx context.Context, ids []string) (map[string]bool, error)
	Upload(ctx context.Context, cand asset.Candidate, deviceAssetID string) (immich.UploadResult, error)
}

// Options configures one run.
type Options struct {
	// Root is the directory to scan.
	Root string
	// Recursive walks subdirectories.
	Recursive bool
	// Concurrency bounds in-flight uploads. Zero means DefaultConcurrency.
	Concurrency int
	// SkipExisting enables the best-effort server existence pre-check, so
	// known assets are classified duplicate without transferring bytes.
	SkipExisting bool
}

type outcomeKind int

const (
	outcomeUploaded outcomeKind = iota
	outcomeDuplicate
	outcomeSkipped
	outcomeFailed
)

// outcome is written once by the worker that owns the file and read once
// by the summary collector.
type outcome struct {
	kind outcomeKind
	path string
	err  error
}

type Uploader struct {
	client  Client
	scanner *scan.Scanner
	log     logging.Logger
}

func New(client Client, log logging.Logger) *Uploader {
	return &Uploader{
		client:  client,
		scanner: scan.New(log),
		log:     log,
	}
}

// Run executes the whole pipeline and returns the aggregated summary.
//
// Fatal conditions — unreadable root, unreachable server, rejected
// credentials — return an error and no summary. Per-file problems never
// do: they become Failed entries in the summary and the batch continues.
// Cancelling ctx stops dispatching new files; in-flight exchanges resolve
// to a terminal outcome before Run returns.
func (u *Uploader) Run(ctx context.Context, opts Options) (*Summary, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	// The scan channel's small buffer is the only lookahead: workers pull
	// lazily, so candidate files are never read into memory ahead of free
	// worker slots.
	entries, err := u.scanner.Scan(gctx, opts.Root, scan.Options{Recursive: opts.Recursive})
	if err != nil {
		return nil, err
	}

	if err := u.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}

	u.log.Info(ctx, "starting upload", "root", opts.Root, "concurrency", concurrency)

	results := make(chan outcome)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for entry := range entries {
				if err := gctx.Err(); err != nil {
					return err
				}
				o, fatal := u.process(gctx, entry, opts.SkipExisting)
				if fatal != nil {
					return fatal
				}
				select {
				case results <- o:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	// Outcomes are folded serially here, so the counters need no locking.
	summary := &Summary{}
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for o := range results {
			summary.record(o)
		}
	}()

	runErr := g.Wait()
	close(results)
	<-collectorDone

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return nil, runErr
	}
	return summary, nil
}

// process handles one file end-to-end: identify, optional existence
// pre-check, upload. The second return value is non-nil only for failures
// that doom the whole run (rejected credentials).
func (u *Uploader) process(ctx context.Context, entry scan.Entry, skipExisting bool) (outcome, error) {
	cand, err := asset.Identify(entry)
	if err != nil {
		u.log.Warn(ctx, "cannot identify file", "path", entry.Path, "error", err)
		return outcome{kind: outcomeFailed, path: entry.Path, err: err}, nil
	}
	if !cand.IsMedia() {
		u.log.Debug(ctx, "skipping non-media file", "path", entry.Path, "type", cand.MIME)
		return outcome{kind: outcomeSkipped, path: entry.Path}, nil
	}

	id := asset.DeviceAssetID(asset.DeviceID, cand.RelPath)

	if skipExisting {
		known, err := u.checkExisting(ctx, id)
		if err != nil {
			return outcome{}, err
		}
		if known {
			u.log.Debug(ctx, "already on server", "path", entry.Path)
			return outcome{kind: outcomeDuplicate, path: entry.Path}, nil
		}
	}

	res, err := u.client.Upload(ctx, cand, id)
	if err != nil {
		if errors.Is(err, immich.ErrAuth) {
			return outcome{}, err
		}
		u.log.Warn(ctx, "upload failed", "path", entry.Path, "error", err)
		return outcome{kind: outcomeFailed, path: entry.Path, err: err}, nil
	}

	if res.Status == immich.StatusDuplicate {
		u.log.Debug(ctx, "duplicate reported by server", "path", entry.Path, "asset_id", res.AssetID)
		return outcome{kind: outcomeDuplicate, path: entry.Path}, nil
	}
	u.log.Debug(ctx, "uploaded", "path", entry.Path, "asset_id", res.AssetID)
	return outcome{kind: outcomeUploaded, path: entry.Path}, nil
}

// checkExisting is best-effort: the upload call itself reports duplicates,
// so any pre-check failure short of an auth rejection degrades to "absent"
// instead of failing the file.
func (u *Uploader) checkExisting(ctx context.Context, id string) (bool, error) {
	existing, err := u.client.CheckExisting(ctx, []string{id})
	if err != nil {
		if errors.Is(err, immich.ErrAuth) {
			return false, err
		}
		u.log.Warn(ctx, "existence check failed, uploading anyway", "error", err)
		return false, nil
	}
	return existing[id], nil
}
