package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type invitadoGormRepository struct {
	db *gorm.DB
}

// GORM実装
func NewInvitadoRepository(db *gorm.DB) repo.InvitadoRepository {
	return &invitadoGormRepository{db: db}
}

func (r *invitadoGormRepository) Create(ctx context.Context, invitado *model.Invitado) error {
	return r.db.WithContext(ctx).Create(invitado).Error
}

func (r *invitadoGormRepository) FindByID(ctx context.Context, id string) (*model.Invitado, error) {
	var invitado model.Invitado

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&invitado).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrInvitadoNotFound
		}
		return nil, err
	}

	return &invitado, nil
}

// upgraded=trueにする。登録完了後の帳簿付けなので冪等でよい
func (r *invitadoGormRepository) MarkUpgraded(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Invitado{}).
		Where("id = ?", id).
		Update("upgraded", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.ErrInvitadoNotFound
	}

	return nil
}
