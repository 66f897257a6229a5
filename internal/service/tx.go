package service

import "context"

// TxRepositories are the stores a single transaction can touch. A resource
// purge spans all three.
type TxRepositories interface {
	Resources() ResourceRepositoryInterface
	Transcripts() TranscriptRepository
	Embeddings() EmbeddingStore
}

// TxRunner runs fn atomically; a non-nil error from fn discards every write.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
