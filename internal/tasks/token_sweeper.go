package tasks

import (
	"context"
	"time"

	"app/internal/repository"

	"github.com/rs/zerolog/log"
)

// 役目を終えたtoken台帳の掃除
// 対象は「期限切れ（無期限tokenは最大保持期間超過）かつgrace経過済み」の行だけ
type TokenSweeper struct {
	tokens       repository.TokenRecordRepository
	maxRetention time.Duration
	grace        time.Duration
}

func NewTokenSweeper(tokens repository.TokenRecordRepository, maxRetention time.Duration, grace time.Duration) *TokenSweeper {
	return &TokenSweeper{
		tokens:       tokens,
		maxRetention: maxRetention,
		grace:        grace,
	}
}

// 1回分のsweepを実行し、削除件数をログに残す
func (s *TokenSweeper) Run(ctx context.Context) error {
	deleted, err := s.tokens.DeleteRetired(ctx, time.Now(), s.maxRetention, s.grace)
	if err != nil {
		return err
	}

	log.Info().Int64("deleted", deleted).Msg("token sweep finished")
	return nil
}
