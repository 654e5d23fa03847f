// Package adapters はledgerフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"options_backend/internal/feature/ledger/domain"
	"options_backend/internal/feature/ledger/usecase"
)

// AccountModel はアカウント残高テーブルの行です。
type AccountModel struct {
	AccountID string  `gorm:"primaryKey;size:128"`
	Balance   float64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AccountModel) TableName() string {
	return "accounts"
}

// accountGorm はAccountStoreインターフェースのgorm実装です。
type accountGorm struct {
	db *gorm.DB
}

var _ usecase.AccountStore = (*accountGorm)(nil)

// NewAccountStore は指定されたgorm.DB接続でaccountGormを生成します。
func NewAccountStore(db *gorm.DB) *accountGorm {
	return &accountGorm{db: db}
}

// LoadAccount は残高を返します。存在しない場合はdomain.ErrAccountNotFoundを返します。
func (r *accountGorm) LoadAccount(ctx context.Context, accountID string) (float64, error) {
	var m AccountModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, err
	}
	return m.Balance, nil
}

// CreateAccount はアカウントを作成します。既に存在する場合は何もしません。
func (r *accountGorm) CreateAccount(ctx context.Context, accountID string, amount float64) error {
	m := AccountModel{AccountID: accountID, Balance: amount}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

// DebitAccount は残高をamountだけ減らします。
func (r *accountGorm) DebitAccount(ctx context.Context, accountID string, amount float64) error {
	return r.add(ctx, accountID, -amount)
}

// CreditAccount は残高をamountだけ増やします。
func (r *accountGorm) CreditAccount(ctx context.Context, accountID string, amount float64) error {
	return r.add(ctx, accountID, amount)
}

// add は読み書きを1つのUPDATE文で行い、並行更新でも差分を失いません。
func (r *accountGorm) add(ctx context.Context, accountID string, delta float64) error {
	res := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
