package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

var ErrTokenRecordNotFound = errors.New("token record not found")

// token台帳の保存・検索・失効・掃除
type TokenRecordRepository interface {
	Create(ctx context.Context, record *model.TokenRecord) error
	FindByJTI(ctx context.Context, jti string) (*model.TokenRecord, error)
	// revoked=falseの行だけ更新する。既に失効済みなら更新件数0で正常終了
	Revoke(ctx context.Context, jti string, revokedAt time.Time) (int64, error)
	RevokeAllByUserID(ctx context.Context, userID int64, revokedAt time.Time) (int64, error)
	RevokeAllByInvitadoID(ctx context.Context, invitadoID string, revokedAt time.Time) (int64, error)
	// 期限切れ（無期限tokenはmaxRetention超過）かつgrace経過済みの行を削除し、件数を返す
	DeleteRetired(ctx context.Context, now time.Time, maxRetention time.Duration, grace time.Duration) (int64, error)
}
