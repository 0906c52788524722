package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	tokenRecords repo.TokenRecordRepository
	invitados    repo.InvitadoRepository
}

func (r *txReposGorm) TokenRecords() repo.TokenRecordRepository { return r.tokenRecords }
func (r *txReposGorm) Invitados() repo.InvitadoRepository       { return r.invitados }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			tokenRecords: NewTokenRecordRepository(tx),
			invitados:    NewInvitadoRepository(tx),
		}
		return fn(r)
	})
}
