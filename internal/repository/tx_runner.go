package repository

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/lessonindex/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner hands transaction-bound repositories to a callback. The
// transaction commits when the callback returns nil and rolls back on an
// error or a panic.
type TxRunner struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{
		pool: pool,
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(txRepos{tx: tx})
	})
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Resources() service.ResourceRepositoryInterface {
	return NewResourceRepositoryWithTx(r.tx)
}

func (r txRepos) Transcripts() service.TranscriptRepository {
	return NewTranscriptRepositoryWithTx(r.tx)
}

func (r txRepos) Embeddings() service.EmbeddingStore {
	return NewEmbeddingRepositoryWithTx(r.tx)
}
