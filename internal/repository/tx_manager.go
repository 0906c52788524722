package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	TokenRecords() TokenRecordRepository
	Invitados() InvitadoRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// login（access+refreshの2件insert）とゲスト作成（本人+tokenのinsert）で使う
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
