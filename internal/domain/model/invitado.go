package model

import "time"

// ゲスト本人。tokenはtoken_records側で管理する
type Invitado struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Upgraded  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
