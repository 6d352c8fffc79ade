package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SQLiteSpanExporter writes finished spans to a table so a single-binary
// deployment can inspect its own traces.
type SQLiteSpanExporter struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteSpanExporter creates the spans table if needed.
func NewSQLiteSpanExporter(ctx context.Context, db *sql.DB) (*SQLiteSpanExporter, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS otel_spans (
			span_id TEXT PRIMARY KEY,
			trace_id TEXT NOT NULL,
			parent_span_id TEXT,
			name TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			status_code INTEGER NOT NULL,
			status_message TEXT,
			attributes TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_otel_spans_trace_id ON otel_spans(trace_id);
		CREATE INDEX IF NOT EXISTS idx_otel_spans_start_time ON otel_spans(start_time);
	`)
	if err != nil {
		return nil, fmt.Errorf("creating spans table: %w", err)
	}
	return &SQLiteSpanExporter{db: db}, nil
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *SQLiteSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO otel_spans (
			span_id, trace_id, parent_span_id, name, start_time, end_time,
			status_code, status_message, attributes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare span statement: %w", err)
	}
	defer stmt.Close()

	for _, span := range spans {
		var parent *string
		if span.Parent().SpanID().IsValid() {
			id := span.Parent().SpanID().String()
			parent = &id
		}

		attrs := make(map[string]string, len(span.Attributes()))
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		attrsJSON, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			span.SpanContext().SpanID().String(),
			span.SpanContext().TraceID().String(),
			parent,
			span.Name(),
			span.StartTime().UnixNano(),
			span.EndTime().UnixNano(),
			int(span.Status().Code),
			span.Status().Description,
			string(attrsJSON),
		); err != nil {
			return fmt.Errorf("insert span: %w", err)
		}
	}

	return tx.Commit()
}

// Shutdown implements sdktrace.SpanExporter. The database is owned by the caller.
func (e *SQLiteSpanExporter) Shutdown(context.Context) error {
	return nil
}

// SpanRecord is one stored span.
type SpanRecord struct {
	TraceID    string
	SpanID     string
	ParentID   string
	Name       string
	Start      time.Time
	Duration   time.Duration
	Failed     bool
	Message    string
	Attributes map[string]string
}

// RecentSpans returns the most recently started spans, newest first.
func (e *SQLiteSpanExporter) RecentSpans(ctx context.Context, limit int) ([]SpanRecord, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT trace_id, span_id, COALESCE(parent_span_id, ''), name, start_time, end_time,
		       status_code, COALESCE(status_message, ''), COALESCE(attributes, '{}')
		FROM otel_spans
		ORDER BY start_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	var records []SpanRecord
	for rows.Next() {
		var (
			r          SpanRecord
			start, end int64
			status     int
			attrs      string
		)
		if err := rows.Scan(&r.TraceID, &r.SpanID, &r.ParentID, &r.Name, &start, &end, &status, &r.Message, &attrs); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		r.Start = time.Unix(0, start).UTC()
		r.Duration = time.Duration(end - start)
		r.Failed = codes.Code(status) == codes.Error
		if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of span %s: %w", r.SpanID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
