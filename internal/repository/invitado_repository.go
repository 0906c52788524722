package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

var ErrInvitadoNotFound = errors.New("invitado not found")

// ゲスト本人の保存・取得。削除はしない（tokenだけsweepする）
type InvitadoRepository interface {
	Create(ctx context.Context, invitado *model.Invitado) error
	FindByID(ctx context.Context, id string) (*model.Invitado, error)
	MarkUpgraded(ctx context.Context, id string) error
}
