package canon

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/eventlake/canon/aws/s3"
	"github.com/eventlake/canon/file"
	"github.com/eventlake/canon/hdfs"
)

// maxLineSize bounds a single input record. Lines beyond this are a read
// error, not noise.
const maxLineSize = 16 * 1024 * 1024

// Pipeline consolidates event-log sources into the canonical per-day,
// batch-partitioned corpus. Each Run is incremental: files already recorded
// in the ledger are skipped, new files are assigned fresh batches, and the
// ledger is rewritten only after the whole run succeeds, so re-running is
// always safe.
type Pipeline struct {
	// Sources are the locations to ingest: s3:// or hdfs:// URIs, or local
	// paths.
	Sources []string
	// OutputRoot is the destination for batch files and the ledger. Same
	// scheme choices as Sources.
	OutputRoot string
	// FilesPerBatch caps the number of source files merged into one batch.
	FilesPerBatch int
	// S3Region is the AWS region used for any s3:// source or output.
	S3Region string

	// Runner executes the map/reduce job. Defaults to an in-process
	// LocalRunner.
	Runner Runner
	// Stats receives liveness counters. Defaults to NopStatter.
	Stats Statter
	// Log receives run progress. Defaults to a disabled logger.
	Log zerolog.Logger
	// Store overrides the output store derived from OutputRoot. Mostly for
	// tests.
	Store Store
	// Now supplies the run timestamp. Defaults to time.Now.
	Now func() time.Time

	s3mu     sync.Mutex
	s3client *s3.Client

	hdfsmu      sync.Mutex
	hdfsClients map[string]*hdfs.Client
}

// Run executes one ingestion pass: load ledger, enumerate, plan, map/reduce,
// persist ledger. A run with nothing new to ingest succeeds without touching
// the ledger or the engine.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.FilesPerBatch < 1 {
		return errors.Errorf("files per batch must be at least 1, got %d", p.FilesPerBatch)
	}
	if len(p.Sources) == 0 {
		return errors.New("no sources configured")
	}
	runner := p.Runner
	if runner == nil {
		runner = NewLocalRunner()
	}
	stats := p.Stats
	if stats == nil {
		stats = NopStatter{}
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	store := p.Store
	if store == nil {
		var err error
		store, err = p.newStore(p.OutputRoot)
		if err != nil {
			return errors.Wrapf(err, "opening output root %s", p.OutputRoot)
		}
	}

	ledger := p.loadLedger(ctx, store)

	listers := make([]Lister, 0, len(p.Sources))
	for _, source := range p.Sources {
		lister, err := p.newLister(source)
		if err != nil {
			return errors.Wrapf(err, "opening source %s", source)
		}
		listers = append(listers, lister)
	}
	discovered, err := Enumerate(ctx, listers...)
	if err != nil {
		return errors.Wrap(err, "enumerating sources")
	}

	newPaths := make([]string, 0, len(discovered))
	for _, path := range discovered {
		if !ledger.Contains(path) {
			newPaths = append(newPaths, path)
		}
	}
	p.Log.Info().
		Int("discovered", len(discovered)).
		Int("new", len(newPaths)).
		Int("skipped", len(discovered)-len(newPaths)).
		Msg("enumerated sources")

	if len(newPaths) == 0 {
		p.Log.Info().Msg("no new files, nothing to ingest")
		return nil
	}

	assignment, err := Plan(newPaths, ledger, p.FilesPerBatch)
	if err != nil {
		return errors.Wrap(err, "planning batches")
	}
	batches := make(map[int]struct{})
	for path, batchID := range assignment {
		p.Log.Debug().Str("path", path).Int("batch", batchID).Msg("assigned new file")
		batches[batchID] = struct{}{}
	}
	p.Log.Info().Int("batches", len(batches)).Int("files", len(newPaths)).Msg("planned batch assignment")

	canonicalizer := NewCanonicalizer(now(), assignment)
	writer := &BatchWriter{Store: store, Stats: stats, CounterInterval: DefaultCounterInterval}
	job := &Job{
		Inputs: newPaths,
		Map:    p.mapFile(canonicalizer, stats),
		Reduce: writer.WriteBatch,
	}
	if err := runner.Run(ctx, job); err != nil {
		return errors.Wrap(err, "running canonicalization job")
	}

	// Persistence failure must surface: swallowing it would re-ingest every
	// file in this run next time.
	err = store.Replace(ctx, MetadataFile, func(w io.Writer) error {
		_, err := ledger.WriteTo(w)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "persisting ledger")
	}

	p.Log.Info().
		Int("files", len(newPaths)).
		Int("max_batch_id", ledger.MaxBatchID()).
		Msg("run complete")
	return nil
}

// loadLedger reads the ledger from the store, starting empty when it cannot
// be opened. The lenient posture means a run never fails on prior-state
// problems, at the cost of re-ingesting if the ledger was truly lost; the
// warning keeps genuine corruption from passing silently.
func (p *Pipeline) loadLedger(ctx context.Context, store Store) *Ledger {
	rc, err := store.Open(ctx, MetadataFile)
	if err != nil {
		p.Log.Warn().Err(err).Msg("no readable ledger, starting empty")
		return NewLedger()
	}
	defer rc.Close()
	ledger := LoadLedger(rc)
	p.Log.Debug().
		Int("entries", ledger.Len()).
		Int("max_batch_id", ledger.MaxBatchID()).
		Msg("loaded ledger")
	return ledger
}

// mapFile builds the map function for one run: read an input file line by
// line, canonicalize, and emit keyed records. Noise lines are dropped
// silently; read failures are fatal for the run.
func (p *Pipeline) mapFile(c *Canonicalizer, stats Statter) func(ctx context.Context, input string, em Emitter) error {
	return func(ctx context.Context, input string, em Emitter) error {
		rc, err := p.openInput(ctx, input)
		if err != nil {
			return err
		}
		defer rc.Close()

		var r io.Reader = rc
		if strings.HasSuffix(input, ".gz") {
			gz, err := gzip.NewReader(rc)
			if err != nil {
				return errors.Wrapf(err, "decompressing %s", input)
			}
			defer gz.Close()
			r = gz
		}

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		emitted, dropped := 0, 0
		for scanner.Scan() {
			event, key, ok := c.Canonicalize(scanner.Bytes(), input)
			if !ok {
				dropped++
				continue
			}
			encoded, err := event.Encode()
			if err != nil {
				dropped++
				continue
			}
			if err := em.Emit(key, encoded); err != nil {
				return errors.Wrapf(err, "emitting record from %s", input)
			}
			emitted++
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "reading %s", input)
		}

		stats.Count("canonicalize.records-emitted", int64(emitted), 1)
		if dropped > 0 {
			stats.Count("canonicalize.records-dropped", int64(dropped), 1)
			p.Log.Debug().Str("path", input).Int("dropped", dropped).Msg("dropped malformed records")
		}
		return nil
	}
}

// newLister dispatches a source location to its backend by scheme, the same
// way inputs are routed everywhere: s3 schemes, then hdfs, then local.
func (p *Pipeline) newLister(source string) (Lister, error) {
	switch {
	case isS3(source):
		client, err := p.s3Client()
		if err != nil {
			return nil, err
		}
		return client.Lister(source)
	case isHDFS(source):
		client, err := p.hdfsClient(source)
		if err != nil {
			return nil, err
		}
		return client.Lister(source)
	default:
		return file.NewTree(source), nil
	}
}

func (p *Pipeline) newStore(root string) (Store, error) {
	switch {
	case isS3(root):
		client, err := p.s3Client()
		if err != nil {
			return nil, err
		}
		return client.Store(root)
	case isHDFS(root):
		client, err := p.hdfsClient(root)
		if err != nil {
			return nil, err
		}
		return client.Store(root)
	default:
		return file.NewTree(root), nil
	}
}

func (p *Pipeline) openInput(ctx context.Context, input string) (io.ReadCloser, error) {
	switch {
	case isS3(input):
		client, err := p.s3Client()
		if err != nil {
			return nil, err
		}
		return client.Open(ctx, input)
	case isHDFS(input):
		client, err := p.hdfsClient(input)
		if err != nil {
			return nil, err
		}
		return client.Open(ctx, input)
	default:
		f, err := os.Open(input)
		return f, errors.Wrapf(err, "opening %s", input)
	}
}

func (p *Pipeline) s3Client() (*s3.Client, error) {
	p.s3mu.Lock()
	defer p.s3mu.Unlock()
	if p.s3client == nil {
		client, err := s3.NewClient(p.S3Region)
		if err != nil {
			return nil, err
		}
		p.s3client = client
	}
	return p.s3client, nil
}

func (p *Pipeline) hdfsClient(uri string) (*hdfs.Client, error) {
	addr, _, err := hdfs.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	p.hdfsmu.Lock()
	defer p.hdfsmu.Unlock()
	if p.hdfsClients == nil {
		p.hdfsClients = make(map[string]*hdfs.Client)
	}
	if client, ok := p.hdfsClients[addr]; ok {
		return client, nil
	}
	client, err := hdfs.NewClient(addr)
	if err != nil {
		return nil, err
	}
	p.hdfsClients[addr] = client
	return client, nil
}

func isS3(uri string) bool {
	return strings.HasPrefix(uri, "s3://") || strings.HasPrefix(uri, "s3n://") || strings.HasPrefix(uri, "s3a://")
}

func isHDFS(uri string) bool {
	return strings.HasPrefix(uri, "hdfs://")
}
