package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"valeads-engine/internal/config"
	"valeads-engine/internal/domain"
	"valeads-engine/internal/events"
	"valeads-engine/internal/store"
)

const txHeader = "Full Address,Close Date,County,City,Street Name,State Or Province,Street Number,Street Suffix,Zip Code\n"

type recorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func (r *recorder) Publish(evt string) {
	var e events.Event
	_ = json.Unmarshal([]byte(evt), &e)
	r.mu.Lock()
	r.evts = append(r.evts, e)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.evts {
		out = append(out, e.Type)
	}
	return out
}

func newService(t *testing.T, mutate func(*config.Config)) (*Service, *store.Memory, *recorder) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	cfg, res := config.NormalizeAndValidate(cfg)
	if !res.OK() {
		t.Fatalf("config: %v", res.Errors)
	}
	mem := store.NewMemory()
	rec := &recorder{}
	s := New(mem, func() config.Config { return cfg }, rec)
	clock := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return clock }
	return s, mem, rec
}

func records(t *testing.T, tree store.Tree, dataset string) map[string]domain.AddressRecord {
	t.Helper()
	raw, err := tree.Get(context.Background(), dataset)
	if err != nil {
		t.Fatal(err)
	}
	out, err := domain.DecodeRecords(dataset, raw)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func upload(dataset, body string) Upload {
	return Upload{Dataset: dataset, Body: strings.NewReader(body)}
}

func TestIngestTransactionsIsIdempotent(t *testing.T) {
	s, mem, _ := newService(t, func(c *config.Config) { c.Reconcile.AfterUpload = false })
	ctx := context.Background()
	body := txHeader +
		"1 A St,2023-01-01,Fairfax,Vienna,A,VA,1,St,22180\n" +
		"1 A St,2023-06-01,Fairfax,Vienna,A,VA,1,St,22180\n"

	if _, err := s.IngestTransactions(ctx, upload("ALL", body)); err != nil {
		t.Fatal(err)
	}
	first := records(t, mem, "ALL")
	if _, err := s.IngestTransactions(ctx, upload("ALL", body)); err != nil {
		t.Fatal(err)
	}
	second := records(t, mem, "ALL")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-upload changed state:\n%v\n%v", first, second)
	}
}

func TestIngestTransactionsUnionsHistory(t *testing.T) {
	s, mem, _ := newService(t, func(c *config.Config) { c.Reconcile.AfterUpload = false })
	ctx := context.Background()

	_, err := s.IngestTransactions(ctx, upload("ALL", txHeader+
		"1 A St,2023-01-01,First,Vienna,A,VA,1,St,22180\n"+
		"2 B St,2022-01-01,First,Vienna,B,VA,2,St,22180\n"))
	if err != nil {
		t.Fatal(err)
	}
	rep, err := s.IngestTransactions(ctx, upload("ALL", txHeader+
		"1 A St,06/01/2023,Second,Vienna,A,VA,1,St,22180\n"))
	if err != nil {
		t.Fatal(err)
	}

	got := records(t, mem, "ALL")
	a := got["1 A St"]
	if a.Details.County != "First" {
		t.Errorf("details overwritten: %+v", a.Details)
	}
	if !reflect.DeepEqual(a.CloseDates, []string{"2023-01-01", "2023-06-01"}) {
		t.Errorf("dates = %v", a.CloseDates)
	}
	if _, ok := got["2 B St"]; !ok {
		t.Error("key absent from the second batch was removed")
	}
	if rep.Records != 1 || rep.Message != "0.00 seconds for 1 total entries" {
		t.Errorf("report = %+v", rep)
	}
}

func TestIngestTransactionsValidatesBeforeWriting(t *testing.T) {
	s, mem, _ := newService(t, nil)
	good := txHeader + "1 A St,2023-01-01,C,C,A,VA,1,St,1\n"
	bad := "Full Address,Close Date\n1 A St,2023-01-01\n"

	_, err := s.IngestTransactions(context.Background(), upload("ALL", good), upload("VA", bad))
	var se *domain.SchemaError
	if !errors.As(err, &se) || se.Dataset != "VA" || se.Column != "County" {
		t.Fatalf("err = %v", err)
	}
	sets, _ := mem.Datasets(context.Background())
	if len(sets) != 0 {
		t.Fatalf("partial write: %v", sets)
	}
}

func TestIngestTransactionsUnknownDataset(t *testing.T) {
	s, _, _ := newService(t, nil)
	_, err := s.IngestTransactions(context.Background(), upload("RealEstate", txHeader))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadReconcilesAfterwards(t *testing.T) {
	s, mem, rec := newService(t, nil)
	ctx := context.Background()

	all := txHeader +
		"1 A St,2023-01-01,Fairfax,Vienna,A,VA,1,St,22180\n" +
		"1 A St,2023-06-01,Fairfax,Vienna,A,VA,1,St,22180\n" +
		"2 B St,2023-06-01,Fairfax,Vienna,B,VA,2,St,22180\n"
	va := txHeader +
		"1 A St,2023-06-01,Fairfax,Vienna,A,VA,1,St,22180\n" +
		"2 B St,2023-05-01,Fairfax,Vienna,B,VA,2,St,22180\n" +
		"3 C St,2023-05-01,Fairfax,Vienna,C,VA,3,St,22180\n"

	rep, err := s.IngestTransactions(ctx, upload("ALL", all), upload("VA", va))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Matched == nil || *rep.Matched != 1 {
		t.Fatalf("matched = %v", rep.Matched)
	}
	if rep.Records != 6 {
		t.Fatalf("records = %d", rep.Records)
	}
	cur := records(t, mem, "CurrentVA")
	if _, ok := cur["1 A St"]; !ok || len(cur) != 1 {
		t.Fatalf("CurrentVA = %v", cur)
	}
	if got := rec.types(); !reflect.DeepEqual(got, []string{events.TypeUploadDone}) {
		t.Fatalf("events = %v", got)
	}
}

func TestReconcileReplacesOutput(t *testing.T) {
	s, mem, _ := newService(t, func(c *config.Config) { c.Reconcile.AfterUpload = false })
	ctx := context.Background()
	_ = mem.Update(ctx, "CurrentVA", map[string]any{"stale": domain.AddressRecord{}})

	rep, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *rep.Matched != 0 {
		t.Fatalf("matched = %d", *rep.Matched)
	}
	if got := records(t, mem, "CurrentVA"); len(got) != 0 {
		t.Fatalf("stale output kept: %v", got)
	}
}

func TestReconcileRejectsMappingDates(t *testing.T) {
	s, mem, _ := newService(t, nil)
	mem.Put("ALL", "k", `{"Details":{},"CloseDates":{"0":"2023-01-01"}}`)
	_, err := s.Reconcile(context.Background())
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v", err)
	}
}

func TestReconcileCanonicalizesStoredDates(t *testing.T) {
	s, mem, _ := newService(t, nil)
	mem.Put("ALL", "1 A St", `{"Details":{},"CloseDates":["2023-06-01","1/5/2024"]}`)
	mem.Put("VA", "1 A St", `{"Details":{},"CloseDates":["2024-01-05"]}`)

	rep, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *rep.Matched != 1 {
		t.Fatalf("matched = %d", *rep.Matched)
	}

	mem.Put("VA", "2 B St", `{"Details":{},"CloseDates":["soon"]}`)
	if _, err := s.Reconcile(context.Background()); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v, want StorageError", err)
	}
}

func TestStorageFailureSurfaces(t *testing.T) {
	s, mem, _ := newService(t, nil)
	mem.FailWrites = errors.New("quota exceeded")
	_, err := s.IngestTransactions(context.Background(), upload("ALL", txHeader+"1 A St,2023-01-01,C,C,A,VA,1,St,1\n"))
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v", err)
	}
}

func TestIngestListingsFilters(t *testing.T) {
	s, mem, _ := newService(t, nil)
	ctx := context.Background()
	head := "Address,City,StateOrProvince,PostalCode,CountyOrParish,MLSNumber,BuyerFinancing\n"

	rep, err := s.IngestListings(ctx, "RealEstate", strings.NewReader(head+
		"1 A St,Vienna,VA,22180,Fairfax,M1,VA\n"+
		"2 B St,Vienna,VA,22180,Fairfax,M2,Cash\n"))
	if err != nil {
		t.Fatal(err)
	}
	if *rep.Filtered != 1 {
		t.Fatalf("filtered = %d", *rep.Filtered)
	}

	// financing changed on re-upload: the listing leaves FilteredVA
	if _, err := s.IngestListings(ctx, "RealEstate", strings.NewReader(head+
		"1 A St,Vienna,VA,22180,Fairfax,M1,Cash\n")); err != nil {
		t.Fatal(err)
	}
	raw, _ := mem.Get(ctx, "FilteredVA")
	if len(raw) != 0 {
		t.Fatalf("FilteredVA = %v", raw)
	}
	all, _ := mem.Get(ctx, "RealEstate")
	if len(all) != 2 {
		t.Fatalf("RealEstate has %d listings", len(all))
	}
}

func TestExport(t *testing.T) {
	s, _, _ := newService(t, nil)
	ctx := context.Background()

	if _, _, err := s.Export(ctx, "usps"); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("empty export err = %v", err)
	}
	if _, _, err := s.Export(ctx, "nope"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown export err = %v", err)
	}

	body := txHeader + "12 Oak Ln #4,2023-06-01,\"Fairfax, VA\",Vienna,Oak,VA,12,N/A,22180\n"
	if _, err := s.IngestTransactions(ctx, upload("ALL", body), upload("VA", body)); err != nil {
		t.Fatal(err)
	}
	sheet, name, err := s.Export(ctx, "usps")
	if err != nil {
		t.Fatal(err)
	}
	if name != "usps_03-07-2024.csv" {
		t.Fatalf("filename = %s", name)
	}
	want := [][]string{{"12 Oak Unit#4", "Vienna", "VA", "22180", "Fairfax"}}
	if !reflect.DeepEqual(sheet.Rows, want) {
		t.Fatalf("rows = %v", sheet.Rows)
	}
}

type fakeSheets struct {
	id, rng string
	values  [][]any
}

func (f *fakeSheets) ReplaceRange(ctx context.Context, id, rng string, values [][]any) error {
	f.id, f.rng, f.values = id, rng, values
	return nil
}

func TestPublishSheet(t *testing.T) {
	s, mem, rec := newService(t, func(c *config.Config) {
		c.Sheets.Enabled = true
		c.Sheets.CredentialsFile = "creds.json"
		c.Sheets.SpreadsheetID = "sheet-1"
		ex := c.Exports["usps_mailing"]
		ex.SheetRange = "Mailing!A1"
		c.Exports["usps_mailing"] = ex
	})
	ctx := context.Background()

	if _, err := s.PublishSheet(ctx, "usps_mailing"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("without client err = %v", err)
	}

	fs := &fakeSheets{}
	s.Sheets = fs
	_ = mem.Update(ctx, "CurrentVA", map[string]any{"9 Elm St": domain.AddressRecord{
		Details: domain.Details{Type: domain.House, FullAddress: "9 Elm St", StreetNumber: "9", StreetName: "Elm",
			StreetSuffix: "St", City: "Vienna", StateOrProvince: "VA", ZipCode: "22180"},
		CloseDates: []string{"2023-01-01"},
	}})

	n, err := s.PublishSheet(ctx, "usps_mailing")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || fs.id != "sheet-1" || fs.rng != "Mailing!A1" || len(fs.values) != 2 {
		t.Fatalf("published n=%d to %s %s: %v", n, fs.id, fs.rng, fs.values)
	}
	if got := rec.types(); got[len(got)-1] != events.TypeExportPublished {
		t.Fatalf("events = %v", got)
	}
}

func TestDatasetsAndDelete(t *testing.T) {
	s, _, rec := newService(t, func(c *config.Config) { c.Reconcile.AfterUpload = false })
	ctx := context.Background()
	if _, err := s.IngestTransactions(ctx, upload("ALL", txHeader+"1 A St,2023-01-01,C,C,A,VA,1,St,1\n")); err != nil {
		t.Fatal(err)
	}

	list, err := s.Datasets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "ALL" || list[0].Count != 1 || list[0].Kind != "transactions" {
		t.Fatalf("datasets = %+v", list)
	}

	if err := s.DeleteDataset(ctx, "ALL"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Dataset(ctx, "ALL"); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v", err)
	}
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	got := rec.types()
	if got[len(got)-1] != events.TypeDatasetDeleted {
		t.Fatalf("events = %v", got)
	}
}

func TestBatchWriterChunks(t *testing.T) {
	mem := store.NewMemory()
	w := BatchWriter{Tree: mem, Size: 2, Concurrency: 3}
	children := map[string]any{}
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		children[k] = k
	}
	if got := len(chunk(children, 2)); got != 3 {
		t.Fatalf("chunks = %d", got)
	}
	ctx := context.Background()
	if err := w.Merge(ctx, "X", children); err != nil {
		t.Fatal(err)
	}
	if err := w.Replace(ctx, "X", map[string]any{"z": 1}); err != nil {
		t.Fatal(err)
	}
	raw, _ := mem.Get(ctx, "X")
	if len(raw) != 1 {
		t.Fatalf("replace left %d children", len(raw))
	}
}
