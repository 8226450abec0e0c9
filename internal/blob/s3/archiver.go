package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/n8kahl/copilotd/internal/domain"
)

// ArchiveImpl implements domain.Archiver by serializing session snapshots to
// JSONL and uploading them to blob storage. Snapshots are passed in by the
// caller; the archiver never reads live state itself.
type ArchiveImpl struct {
	writer domain.BlobWriter
}

// NewArchiver creates an ArchiveImpl writing through the given BlobWriter.
func NewArchiver(writer domain.BlobWriter) *ArchiveImpl {
	return &ArchiveImpl{writer: writer}
}

// ArchiveTiles uploads a tile snapshot to archive/tiles/, keyed by the
// snapshot timestamp. Returns the number of records written.
func (a *ArchiveImpl) ArchiveTiles(ctx context.Context, at time.Time, tiles []domain.Tile) (int64, error) {
	if len(tiles) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(tiles)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive tiles marshal: %w", err)
	}

	path := archivePath("tiles", at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive tiles upload: %w", err)
	}
	return int64(len(tiles)), nil
}

// ArchiveTrades uploads a trade snapshot to archive/trades/, keyed by the
// snapshot timestamp. Returns the number of records written.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, at time.Time, trades []domain.ActiveTrade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}
	return int64(len(trades)), nil
}

// archivePath builds the object key for a snapshot, partitioned by day with
// the time of day in the filename:
//
//	archive/tiles/2025-06-21/153000.jsonl
//	archive/trades/2025-06-21/153000.jsonl
func archivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, at.Format("2006-01-02"), at.Format("150405"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
