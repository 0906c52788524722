package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type tokenRecordGormRepository struct {
	db *gorm.DB
}

// GORM実装
func NewTokenRecordRepository(db *gorm.DB) repo.TokenRecordRepository {
	return &tokenRecordGormRepository{db: db}
}

func (r *tokenRecordGormRepository) Create(ctx context.Context, record *model.TokenRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// jtiで1件検索。失効チェックは毎リクエストここを読む
func (r *tokenRecordGormRepository) FindByJTI(ctx context.Context, jti string) (*model.TokenRecord, error) {
	var record model.TokenRecord

	err := r.db.WithContext(ctx).
		Where("jti = ?", jti).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrTokenRecordNotFound
		}
		return nil, err
	}

	return &record, nil
}

// revoked=false→trueの一方向遷移のみ。既にtrueなら更新件数0
func (r *tokenRecordGormRepository) Revoke(ctx context.Context, jti string, revokedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TokenRecord{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": &revokedAt,
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// 指定ユーザーの未失効tokenを一括失効（logout-all）
func (r *tokenRecordGormRepository) RevokeAllByUserID(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TokenRecord{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": &revokedAt,
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// 指定ゲストの未失効tokenを一括失効
func (r *tokenRecordGormRepository) RevokeAllByInvitadoID(ctx context.Context, invitadoID string, revokedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TokenRecord{}).
		Where("invitado_id = ? AND revoked = ?", invitadoID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": &revokedAt,
		})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// 掃除対象：
//   - expires_atあり → 期限切れ
//   - expires_atなし → 作成からmaxRetention超過
//
// どちらも作成からgrace経過していることが条件
func (r *tokenRecordGormRepository) DeleteRetired(ctx context.Context, now time.Time, maxRetention time.Duration, grace time.Duration) (int64, error) {
	graceCutoff := now.Add(-grace)
	retentionCutoff := now.Add(-maxRetention)

	result := r.db.WithContext(ctx).
		Where("created_at < ?", graceCutoff).
		Where("(expires_at IS NOT NULL AND expires_at < ?) OR (expires_at IS NULL AND created_at < ?)", now, retentionCutoff).
		Delete(&model.TokenRecord{})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
