// Package entity defines the domain models for the symbollist feature.
package entity

import "time"

const (
	MarketFX     = "fx"
	MarketCrypto = "crypto"
)

// Symbol は取引可能なシンボルです。Codeは "EUR/USD" のような正規化済みの表記です。
type Symbol struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:20;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	Market    string    `gorm:"size:20;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	SortKey   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
