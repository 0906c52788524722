package model

import "time"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// 発行した全tokenの台帳。jtiが失効チェックのキー
// UserID / InvitadoID はどちらか片方だけ入る
type TokenRecord struct {
	JTI        string    `gorm:"column:jti;type:uuid;primaryKey"`
	UserID     *int64    `gorm:"index"`
	InvitadoID *string   `gorm:"type:uuid;index"`
	TokenType  TokenType `gorm:"type:varchar(10);not null"`
	// nullは自動失効なし（ゲストaccess token）。sweeperは最大保持期間で消す
	ExpiresAt *time.Time `gorm:"index"`
	Revoked   bool       `gorm:"not null;default:false;index"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
