package stats

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dailytopic/internal/model"
)

func testReport(date time.Time) *model.DailyReport {
	return &model.DailyReport{
		Date: date,
		Summaries: []model.SummaryResult{
			{
				Category:     "C1",
				Summary:      "s1",
				InputTokens:  1000,
				OutputTokens: 200,
				CostUSD:      0.006,
				ArticleCount: 3,
				GeneratedAt:  date,
			},
			{
				Category:     "C4",
				Summary:      "s2",
				InputTokens:  800,
				OutputTokens: 150,
				CostUSD:      0.0047,
				ArticleCount: 2,
				GeneratedAt:  date,
			},
		},
		TotalArticles: 5,
		Usage:         model.UsageRecord{InputTokens: 1800, OutputTokens: 350, CostUSD: 0.0107, Calls: 2},
	}
}

func TestRecordWritesCSVAndJSON(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	defer w.Close()

	date := time.Date(2026, 8, 29, 7, 30, 0, 0, time.UTC)
	w.Record(context.Background(), testReport(date))

	// CSV: header plus one row per summary.
	csvPath := filepath.Join(dir, "usage_202608.csv")
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("opening csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][1] != "category" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "C1" || rows[1][2] != "1200" || rows[1][4] != "3" {
		t.Errorf("row = %v", rows[1])
	}

	// JSON snapshot.
	jsonPath := filepath.Join(dir, "20260829_073000.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshaling snapshot: %v", err)
	}
	if snap.TotalTokens != 2150 || snap.Calls != 2 {
		t.Errorf("snapshot totals = %+v", snap)
	}
	if len(snap.Summaries) != 2 {
		t.Errorf("snapshot summaries = %d", len(snap.Summaries))
	}
}

func TestRecordAppendsWithinMonth(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	defer w.Close()

	w.Record(context.Background(), testReport(time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)))
	w.Record(context.Background(), testReport(time.Date(2026, 8, 2, 7, 0, 0, 0, time.UTC)))

	f, err := os.Open(filepath.Join(dir, "usage_202608.csv"))
	if err != nil {
		t.Fatalf("opening csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	// One header only, then two rows per run.
	if len(rows) != 5 {
		t.Errorf("rows = %d, want 5", len(rows))
	}
	headerCount := 0
	for _, row := range rows {
		if row[0] == "timestamp" {
			headerCount++
		}
	}
	if headerCount != 1 {
		t.Errorf("headers = %d, want 1", headerCount)
	}
}

func TestRecordSplitsByMonth(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	defer w.Close()

	w.Record(context.Background(), testReport(time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)))
	w.Record(context.Background(), testReport(time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)))

	for _, name := range []string{"usage_202608.csv", "usage_202609.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing monthly file %s: %v", name, err)
		}
	}
}

func TestRecordNeverFails(t *testing.T) {
	// Point the writer at an unwritable location; Record must not panic and
	// must not return anything.
	w := &Writer{dir: "/proc/no-such-dir/stats"}
	w.Record(context.Background(), testReport(time.Now()))
}

func TestListSnapshotsNoBucket(t *testing.T) {
	w, err := NewWriter(context.Background(), t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	defer w.Close()

	names, err := w.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("ListSnapshots() error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("names = %v, want empty", names)
	}
}
