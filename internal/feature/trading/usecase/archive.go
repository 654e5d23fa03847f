package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"options_backend/internal/feature/trading/domain/entity"
	"options_backend/internal/platform/clock"
)

// DefaultArchiveInterval はアーカイブの実行間隔です。
const DefaultArchiveInterval = 5 * time.Minute

// BlobWriter はオブジェクトストレージへの書き込みです。
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// HistoryReader は判定済みコントラクトをカーソルで読み出します。
type HistoryReader interface {
	HistorySince(cursor int) ([]entity.Contract, int)
}

// ArchiveConfig はArchiverの設定です。
type ArchiveConfig struct {
	Prefix   string
	Interval time.Duration
}

// Archiver は判定済みコントラクトをJSON Linesでオブジェクトストレージへ書き出します。
// 書き込みに成功した分だけカーソルを進めます。
type Archiver struct {
	history HistoryReader
	writer  BlobWriter
	prefix  string
	every   time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	cursor int
}

// NewArchiver はArchiverを生成します。
func NewArchiver(history HistoryReader, writer BlobWriter, cfg ArchiveConfig, clk clock.Clock, logger *slog.Logger) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultArchiveInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		history: history,
		writer:  writer,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		every:   cfg.Interval,
		clock:   clk,
		logger:  logger.With("component", "contract_archiver"),
	}
}

// contractRecord はアーカイブ1行分の形式です。
type contractRecord struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	Stake       float64   `json:"stake"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	PayoutRate  float64   `json:"payout_rate"`
	Payout      float64   `json:"payout"`
	Outcome     string    `json:"outcome"`
	DurationSec float64   `json:"duration_sec"`
	OpenedAt    time.Time `json:"opened_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func toRecord(c entity.Contract) contractRecord {
	return contractRecord{
		ID:          c.ID,
		AccountID:   c.AccountID,
		Symbol:      c.Symbol,
		Direction:   string(c.Direction),
		Stake:       c.Stake,
		EntryPrice:  c.EntryPrice,
		ExitPrice:   c.ExitPrice,
		PayoutRate:  c.PayoutRate,
		Payout:      c.Payout,
		Outcome:     string(c.Outcome),
		DurationSec: c.Duration.Seconds(),
		OpenedAt:    c.OpenedAt.UTC(),
		ExpiresAt:   c.ExpiresAt.UTC(),
		ResolvedAt:  c.ResolvedAt.UTC(),
	}
}

// Flush は前回以降に判定されたコントラクトを1ファイルにまとめて書き出し、件数を返します。
func (a *Archiver) Flush(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	contracts, next := a.history.HistorySince(a.cursor)
	if len(contracts) == 0 {
		a.cursor = next
		return 0, nil
	}

	records := make([]contractRecord, 0, len(contracts))
	for _, c := range contracts {
		records = append(records, toRecord(c))
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, err
	}

	key := a.objectKey(a.clock.Now())
	if err := a.writer.Put(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("archive contracts to %s: %w", key, err)
	}
	a.cursor = next
	a.logger.Info("contracts archived", "key", key, "count", len(records))
	return len(records), nil
}

// objectKey は prefix/YYYY/MM/DD/contracts-<unixnano>.jsonl を返します。
func (a *Archiver) objectKey(now time.Time) string {
	now = now.UTC()
	name := fmt.Sprintf("%s/contracts-%d.jsonl", now.Format("2006/01/02"), now.UnixNano())
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// Run はinterval毎にFlushします。終了時にも一度Flushします。
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
			defer cancel()
			if _, err := a.Flush(fctx); err != nil {
				a.logger.Warn("final archive flush failed", "error", err)
			}
			return nil
		case <-a.clock.After(a.every):
			if _, err := a.Flush(ctx); err != nil {
				a.logger.Warn("archive flush failed", "error", err)
			}
		}
	}
}

// marshalJSONL はレコードを改行区切りのJSONに変換します。
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
