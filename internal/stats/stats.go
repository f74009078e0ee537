package stats

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"dailytopic/internal/model"
)

// Writer persists run statistics: a monthly append-only CSV, a timestamped
// JSON snapshot, and optionally an upload of the snapshot to Cloud Storage.
type Writer struct {
	dir        string
	bucketName string
	client     *storage.Client
}

// NewWriter creates a stats writer. bucketName may be empty, in which case
// snapshots stay local only.
func NewWriter(ctx context.Context, dir, bucketName string) (*Writer, error) {
	w := &Writer{dir: dir, bucketName: bucketName}

	if bucketName != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating storage client: %w", err)
		}
		w.client = client
	}

	return w, nil
}

// Close releases the storage client, if any.
func (w *Writer) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// snapshot is the JSON shape written per run.
type snapshot struct {
	Timestamp    time.Time             `json:"timestamp"`
	TotalTokens  int                   `json:"total_tokens"`
	InputTokens  int                   `json:"input_tokens"`
	OutputTokens int                   `json:"output_tokens"`
	TotalCostUSD float64               `json:"total_cost_usd"`
	Calls        int                   `json:"calls"`
	Summaries    []model.SummaryResult `json:"summaries"`
}

// Record persists the run's statistics. Failures are logged, not returned:
// statistics must never fail the run.
func (w *Writer) Record(ctx context.Context, report *model.DailyReport) {
	if err := w.appendCSV(report); err != nil {
		slog.Warn("統計CSVの保存に失敗", "error", err)
	}

	path, err := w.writeJSON(report)
	if err != nil {
		slog.Warn("統計JSONの保存に失敗", "error", err)
		return
	}

	if w.client != nil {
		if err := w.upload(ctx, path); err != nil {
			slog.Warn("統計のアップロードに失敗", "error", err)
		}
	}
}

// appendCSV appends one row per summary to the monthly stats file, writing
// the header when the file is new.
func (w *Writer) appendCSV(report *model.DailyReport) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating stats dir: %w", err)
	}

	path := filepath.Join(w.dir, "usage_"+report.Date.Format("200601")+".csv")

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening stats file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write([]string{"timestamp", "category", "tokens_used", "cost_usd", "article_count"}); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for _, s := range report.Summaries {
		row := []string{
			s.GeneratedAt.Format(time.RFC3339),
			s.Category,
			strconv.Itoa(s.InputTokens + s.OutputTokens),
			strconv.FormatFloat(s.CostUSD, 'f', 6, 64),
			strconv.Itoa(s.ArticleCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	slog.Info("統計CSVを保存", "path", path, "rows", len(report.Summaries))
	return nil
}

// writeJSON writes the timestamped run snapshot and returns its path.
func (w *Writer) writeJSON(report *model.DailyReport) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating stats dir: %w", err)
	}

	snap := snapshot{
		Timestamp:    report.Date,
		TotalTokens:  report.Usage.TotalTokens(),
		InputTokens:  report.Usage.InputTokens,
		OutputTokens: report.Usage.OutputTokens,
		TotalCostUSD: report.Usage.CostUSD,
		Calls:        report.Usage.Calls,
		Summaries:    report.Summaries,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}

	path := filepath.Join(w.dir, report.Date.Format("20060102_150405")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	slog.Info("統計JSONを保存", "path", path)
	return path, nil
}

// upload copies the snapshot file into the configured bucket.
func (w *Writer) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	objectName := "stats/" + filepath.Base(path)
	writer := w.client.Bucket(w.bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing object writer: %w", err)
	}

	slog.Info("統計をCloud Storageへアップロード", "bucket", w.bucketName, "object", objectName)
	return nil
}

// ListSnapshots returns the names of archived snapshots in the bucket,
// newest-name-last. Returns an empty list when no bucket is configured.
func (w *Writer) ListSnapshots(ctx context.Context) ([]string, error) {
	if w.client == nil {
		return nil, nil
	}

	var names []string
	it := w.client.Bucket(w.bucketName).Objects(ctx, &storage.Query{Prefix: "stats/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		names = append(names, attrs.Name)
	}

	return names, nil
}
