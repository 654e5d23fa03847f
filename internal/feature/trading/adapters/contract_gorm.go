// Package adapters はtradingフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"options_backend/internal/feature/trading/domain"
	"options_backend/internal/feature/trading/domain/entity"
	"options_backend/internal/feature/trading/usecase"
)

// ContractModel はコントラクトテーブルの行です。
type ContractModel struct {
	ID          string  `gorm:"primaryKey;size:36"`
	AccountID   string  `gorm:"size:128;not null;index:idx_contract_account"`
	Symbol      string  `gorm:"size:32;not null"`
	Direction   string  `gorm:"size:8;not null"`
	Stake       float64 `gorm:"not null"`
	EntryPrice  float64 `gorm:"not null"`
	PayoutRate  float64 `gorm:"not null"`
	DurationSec float64 `gorm:"not null"`
	OpenedAt    time.Time
	ExpiresAt   time.Time `gorm:"index"`
	State       string    `gorm:"size:16;not null"`
	ExitPrice   *float64
	Outcome     *string `gorm:"size:8"`
	Payout      *float64
	ResolvedAt  *time.Time
	UpdatedAt   time.Time
}

func (ContractModel) TableName() string {
	return "contracts"
}

// contractGorm はContractStoreインターフェースのgorm実装です。
type contractGorm struct {
	db *gorm.DB
}

var (
	_ usecase.ContractStore  = (*contractGorm)(nil)
	_ usecase.ContractFinder = (*contractGorm)(nil)
)

// NewContractStore は指定されたgorm.DB接続でcontractGormを生成します。
func NewContractStore(db *gorm.DB) *contractGorm {
	return &contractGorm{db: db}
}

// CreateContract は建玉時のコントラクトを保存します。
func (r *contractGorm) CreateContract(ctx context.Context, c entity.Contract) error {
	m := toModel(c)
	return r.db.WithContext(ctx).Create(&m).Error
}

// UpdateContract は判定結果を反映します。対象行が無い場合はdomain.ErrContractNotFoundを返します。
func (r *contractGorm) UpdateContract(ctx context.Context, id string, patch entity.ContractPatch) error {
	res := r.db.WithContext(ctx).
		Model(&ContractModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":       string(patch.State),
			"exit_price":  patch.ExitPrice,
			"outcome":     string(patch.Outcome),
			"payout":      patch.Payout,
			"resolved_at": patch.ResolvedAt.UTC(),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrContractNotFound
	}
	return nil
}

// FindContract はIDでコントラクトを取得します。存在しない場合はdomain.ErrContractNotFoundを返します。
func (r *contractGorm) FindContract(ctx context.Context, id string) (entity.Contract, error) {
	var m ContractModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.Contract{}, domain.ErrContractNotFound
		}
		return entity.Contract{}, err
	}
	return toEntity(m), nil
}

func toModel(c entity.Contract) ContractModel {
	m := ContractModel{
		ID:          c.ID,
		AccountID:   c.AccountID,
		Symbol:      c.Symbol,
		Direction:   string(c.Direction),
		Stake:       c.Stake,
		EntryPrice:  c.EntryPrice,
		PayoutRate:  c.PayoutRate,
		DurationSec: c.Duration.Seconds(),
		OpenedAt:    c.OpenedAt.UTC(),
		ExpiresAt:   c.ExpiresAt.UTC(),
		State:       string(c.State),
	}
	if c.Resolved() {
		exit, payout, outcome, at := c.ExitPrice, c.Payout, string(c.Outcome), c.ResolvedAt.UTC()
		m.ExitPrice, m.Payout, m.Outcome, m.ResolvedAt = &exit, &payout, &outcome, &at
	}
	return m
}

func toEntity(m ContractModel) entity.Contract {
	c := entity.Contract{
		ID:         m.ID,
		AccountID:  m.AccountID,
		Symbol:     m.Symbol,
		Direction:  entity.Direction(m.Direction),
		Stake:      m.Stake,
		EntryPrice: m.EntryPrice,
		PayoutRate: m.PayoutRate,
		Duration:   time.Duration(m.DurationSec * float64(time.Second)),
		OpenedAt:   m.OpenedAt.UTC(),
		ExpiresAt:  m.ExpiresAt.UTC(),
		State:      entity.State(m.State),
	}
	if m.ExitPrice != nil {
		c.ExitPrice = *m.ExitPrice
	}
	if m.Payout != nil {
		c.Payout = *m.Payout
	}
	if m.Outcome != nil {
		c.Outcome = entity.Outcome(*m.Outcome)
	}
	if m.ResolvedAt != nil {
		c.ResolvedAt = m.ResolvedAt.UTC()
	}
	return c
}
