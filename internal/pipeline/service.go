// Package pipeline runs the upload, reconcile and export flows against a
// store.Tree. Runs are serialized per Service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"valeads-engine/internal/closedate"
	"valeads-engine/internal/config"
	"valeads-engine/internal/domain"
	"valeads-engine/internal/events"
	"valeads-engine/internal/export"
	"valeads-engine/internal/ingest"
	"valeads-engine/internal/reconcile"
	"valeads-engine/internal/store"
)

// SheetWriter publishes a rendered export to a spreadsheet range.
type SheetWriter interface {
	ReplaceRange(ctx context.Context, spreadsheetID, range_ string, values [][]any) error
}

type Service struct {
	Tree   store.Tree
	Config func() config.Config
	Events events.Publisher
	Sheets SheetWriter // nil when publication is disabled
	Now    func() time.Time

	mu sync.Mutex
}

func New(tree store.Tree, cfg func() config.Config, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Service{Tree: tree, Config: cfg, Events: pub, Now: time.Now}
}

// Report summarizes one run.
type Report struct {
	RunID           string         `json:"run_id"`
	Records         int            `json:"records"`
	Keys            int            `json:"keys,omitempty"`
	Skipped         int            `json:"skipped,omitempty"`
	Matched         *int           `json:"matched,omitempty"`
	Filtered        *int           `json:"filtered,omitempty"`
	Dropped         map[string]int `json:"dropped,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Message         string         `json:"message"`
}

func (s *Service) newReport() *Report {
	return &Report{RunID: uuid.NewString()}
}

func (s *Service) finish(r *Report, start time.Time) {
	d := s.Now().Sub(start)
	r.DurationSeconds = d.Seconds()
	r.Message = fmt.Sprintf("%.2f seconds for %d total entries", r.DurationSeconds, r.Records)
}

func (s *Service) publish(ctx context.Context, typ string, data any) {
	s.Events.Publish(events.MakeEvent(RequestID(ctx), typ, 1, data))
}

func (s *Service) writer(cfg config.Config) BatchWriter {
	return BatchWriter{
		Tree:        s.Tree,
		Size:        cfg.Storage.BatchSize,
		Concurrency: cfg.Storage.WriteConcurrency,
		PerSecond:   cfg.Storage.WritesPerSecond,
	}
}

func order(cfg config.Config) (closedate.Order, error) {
	o, err := closedate.NewOrder(cfg.Dates.Mode, cfg.Dates.Layouts)
	if err != nil {
		return closedate.Order{}, domain.Validation("%v", err)
	}
	return o, nil
}

func datasetOf(cfg config.Config, name, kind string) (config.Dataset, error) {
	ds, ok := cfg.Datasets[name]
	if !ok {
		return config.Dataset{}, domain.Validation("unknown dataset %q", name)
	}
	if ds.Kind != kind {
		return config.Dataset{}, domain.Validation("dataset %q holds %s, not %s", name, ds.Kind, kind)
	}
	return ds, nil
}

// Upload is one named CSV body.
type Upload struct {
	Dataset string
	Body    io.Reader
}

// IngestTransactions normalizes and merge-writes each upload in order. Every
// upload is parsed and validated before anything is written. When a
// reconciliation input changed and reconcile.after_upload is set, the
// derived dataset is rebuilt afterwards.
func (s *Service) IngestTransactions(ctx context.Context, uploads ...Upload) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.Now()
	cfg := s.Config()
	rep := s.newReport()

	ord, err := order(cfg)
	if err != nil {
		return nil, err
	}

	batches := make([]*ingest.Batch, 0, len(uploads))
	for _, u := range uploads {
		ds, err := datasetOf(cfg, u.Dataset, config.KindTransactions)
		if err != nil {
			return nil, err
		}
		tbl, err := ingest.ParseCSV(u.Dataset, u.Body)
		if err != nil {
			return nil, err
		}
		b, err := ingest.Normalize(tbl, ds.Required, ord)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	touched := false
	w := s.writer(cfg)
	for _, b := range batches {
		existing, err := s.Tree.Get(ctx, b.Dataset)
		if err != nil {
			return nil, err
		}
		if err := ingest.MergeExisting(b, existing, ord); err != nil {
			return nil, err
		}
		children := make(map[string]any, len(b.Records))
		for k, rec := range b.Records {
			children[k] = rec
		}
		if err := w.Merge(ctx, b.Dataset, children); err != nil {
			return nil, err
		}

		log.Info().
			Str("run_id", rep.RunID).
			Str("dataset", b.Dataset).
			Int("rows", b.Rows).
			Int("keys", len(b.Records)).
			Int("skipped", b.Skipped).
			Msg("dataset merged")

		rep.Records += b.Rows
		rep.Keys += len(b.Records)
		rep.Skipped += b.Skipped
		if b.Dataset == cfg.Reconcile.General || b.Dataset == cfg.Reconcile.Filtered {
			touched = true
		}
	}

	if touched && cfg.Reconcile.AfterUpload {
		n, err := s.reconcile(ctx, cfg, ord)
		if err != nil {
			return nil, err
		}
		rep.Matched = &n
	}

	s.finish(rep, start)
	s.publish(ctx, events.TypeUploadDone, rep)
	return rep, nil
}

// Ingest routes a single upload by the kind of its target dataset.
func (s *Service) Ingest(ctx context.Context, dataset string, body io.Reader) (*Report, error) {
	ds, ok := s.Config().Datasets[dataset]
	if !ok {
		return nil, domain.Validation("unknown dataset %q", dataset)
	}
	if ds.Kind == config.KindListings {
		return s.IngestListings(ctx, dataset, body)
	}
	return s.IngestTransactions(ctx, Upload{Dataset: dataset, Body: body})
}

// IngestListings stores a listings upload and refreshes the financing
// filtered copy for the addresses it contains.
func (s *Service) IngestListings(ctx context.Context, dataset string, body io.Reader) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.Now()
	cfg := s.Config()
	rep := s.newReport()

	ds, err := datasetOf(cfg, dataset, config.KindListings)
	if err != nil {
		return nil, err
	}
	tbl, err := ingest.ParseCSV(dataset, body)
	if err != nil {
		return nil, err
	}
	b, err := ingest.NormalizeListings(tbl, ds)
	if err != nil {
		return nil, err
	}

	w := s.writer(cfg)
	children := make(map[string]any, len(b.Listings))
	for k, l := range b.Listings {
		children[k] = l
	}
	if err := w.Merge(ctx, dataset, children); err != nil {
		return nil, err
	}
	rep.Records = b.Rows
	rep.Keys = len(b.Listings)
	rep.Skipped = b.Skipped

	if cfg.Filter.Source == dataset && cfg.Filter.Target != "" {
		kept, dropped := ingest.FilterListings(ingest.FilterFromConfig(cfg), b)
		keptChildren := make(map[string]any, len(kept))
		for k, l := range kept {
			keptChildren[k] = l
		}
		if err := w.Merge(ctx, cfg.Filter.Target, keptChildren); err != nil {
			return nil, err
		}
		// a re-uploaded listing that no longer matches leaves the filtered set
		for k := range b.Listings {
			if _, ok := kept[k]; ok {
				continue
			}
			if err := s.Tree.Delete(ctx, cfg.Filter.Target+"/"+k); err != nil {
				return nil, err
			}
		}
		n := len(kept)
		rep.Filtered = &n
		rep.Dropped = dropped
	}

	log.Info().
		Str("run_id", rep.RunID).
		Str("dataset", dataset).
		Int("rows", b.Rows).
		Int("keys", len(b.Listings)).
		Msg("listings merged")

	s.finish(rep, start)
	s.publish(ctx, events.TypeListingsDone, rep)
	return rep, nil
}

// Reconcile rebuilds the derived dataset from the stored general and
// filtered datasets.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.Now()
	cfg := s.Config()
	rep := s.newReport()

	ord, err := order(cfg)
	if err != nil {
		return nil, err
	}
	n, err := s.reconcile(ctx, cfg, ord)
	if err != nil {
		return nil, err
	}
	rep.Records = n
	rep.Matched = &n

	s.finish(rep, start)
	s.publish(ctx, events.TypeReconcileDone, rep)
	return rep, nil
}

func (s *Service) reconcile(ctx context.Context, cfg config.Config, ord closedate.Order) (int, error) {
	load := func(name string) (map[string]domain.AddressRecord, error) {
		raw, err := s.Tree.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		recs, err := domain.DecodeRecords(name, raw)
		if err != nil {
			return nil, err
		}
		if err := ord.CanonicalRecords(name, recs); err != nil {
			return nil, err
		}
		return recs, nil
	}
	general, err := load(cfg.Reconcile.General)
	if err != nil {
		return 0, err
	}
	filtered, err := load(cfg.Reconcile.Filtered)
	if err != nil {
		return 0, err
	}

	matched := reconcile.Reconcile(general, filtered, ord)
	children := make(map[string]any, len(matched))
	for k, rec := range matched {
		children[k] = rec
	}
	if err := s.writer(cfg).Replace(ctx, cfg.Reconcile.Output, children); err != nil {
		return 0, err
	}

	log.Info().
		Str("general", cfg.Reconcile.General).
		Str("filtered", cfg.Reconcile.Filtered).
		Str("dataset", cfg.Reconcile.Output).
		Int("matched", len(matched)).
		Msg("reconciled")
	return len(matched), nil
}

func exportOf(cfg config.Config, name string) (config.Export, error) {
	ex, ok := cfg.Exports[name]
	if !ok {
		return config.Export{}, domain.Validation("unknown export %q", name)
	}
	return ex, nil
}

// Export renders the named export and the download filename for today.
func (s *Service) Export(ctx context.Context, name string) (*export.Sheet, string, error) {
	ex, err := exportOf(s.Config(), name)
	if err != nil {
		return nil, "", err
	}
	src, err := s.Tree.Get(ctx, ex.Source)
	if err != nil {
		return nil, "", err
	}
	sheet, err := export.Build(name, ex, src)
	if err != nil {
		return nil, "", err
	}
	return sheet, export.Filename(name, s.Now()), nil
}

// PublishSheet renders the named export and writes it to its sheet range.
func (s *Service) PublishSheet(ctx context.Context, name string) (int, error) {
	cfg := s.Config()
	ex, err := exportOf(cfg, name)
	if err != nil {
		return 0, err
	}
	if s.Sheets == nil || !cfg.Sheets.Enabled {
		return 0, domain.Validation("sheet publication is disabled")
	}
	if ex.SheetRange == "" {
		return 0, domain.Validation("export %q has no sheet_range", name)
	}
	sheet, _, err := s.Export(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := s.Sheets.ReplaceRange(ctx, cfg.Sheets.SpreadsheetID, ex.SheetRange, sheet.Values()); err != nil {
		return 0, fmt.Errorf("publish %s: %w", name, err)
	}
	s.publish(ctx, events.TypeExportPublished, map[string]any{"export": name, "rows": len(sheet.Rows)})
	return len(sheet.Rows), nil
}

// DatasetInfo is one entry of the dataset listing.
type DatasetInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Service) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	counts, err := s.Tree.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	cfg := s.Config()
	out := make([]DatasetInfo, 0, len(counts))
	for name, n := range counts {
		out = append(out, DatasetInfo{Name: name, Count: n, Kind: cfg.Datasets[name].Kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Dataset returns the stored children of name. An empty dataset is a NoDataError.
func (s *Service) Dataset(ctx context.Context, name string) (map[string]json.RawMessage, error) {
	raw, err := s.Tree.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &domain.NoDataError{Dataset: name}
	}
	return raw, nil
}

func (s *Service) DeleteDataset(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Tree.Delete(ctx, name); err != nil {
		return err
	}
	log.Info().Str("dataset", name).Msg("dataset deleted")
	s.publish(ctx, events.TypeDatasetDeleted, map[string]any{"dataset": name})
	return nil
}

func (s *Service) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Tree.DeleteAll(ctx); err != nil {
		return err
	}
	log.Warn().Msg("all datasets deleted")
	s.publish(ctx, events.TypeDatasetDeleted, map[string]any{"dataset": "*"})
	return nil
}
