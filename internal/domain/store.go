package domain

import (
	"context"
	"io"
	"time"
)

// WatchlistSource provides the operator-managed symbol list. The concrete
// implementation queries the analytics engine.
type WatchlistSource interface {
	Watchlist(ctx context.Context) ([]string, error)
}

// SnapshotFetcher performs the one-shot bootstrap fetch of a symbol's full
// tile state.
type SnapshotFetcher interface {
	TileState(ctx context.Context, symbol string) (*PartialTile, error)
}

// LedgerStore persists the serialized active-trade list as a single storage
// entry and restores it on startup. Writes are best effort: callers log and
// drop errors rather than failing the mutation that triggered the write.
type LedgerStore interface {
	Save(ctx context.Context, trades []ActiveTrade) error
	Load(ctx context.Context) ([]ActiveTrade, error)
}

// AlertRecord is one confirmed dispatch in the durable audit log.
type AlertRecord struct {
	ID         int64        `json:"id"`
	Action     AlertAction  `json:"action"`
	Symbol     string       `json:"symbol"`
	ContractID string       `json:"contract_id"`
	Payload    AlertPayload `json:"payload"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ListOpts carries pagination and time-range filters for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AlertStore is the append-only audit log of confirmed dispatches.
type AlertStore interface {
	Insert(ctx context.Context, rec AlertRecord) error
	List(ctx context.Context, opts ListOpts) ([]AlertRecord, error)
}

// SignalBus is a lightweight pub/sub channel between the reconciler and the
// dashboard websocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver exports session snapshots (tiles and closed trades) to blob
// storage for offline review.
type Archiver interface {
	ArchiveTiles(ctx context.Context, at time.Time, tiles []Tile) (int64, error)
	ArchiveTrades(ctx context.Context, at time.Time, trades []ActiveTrade) (int64, error)
}
