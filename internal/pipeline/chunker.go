package pipeline

import (
	"context"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// chunkBuffer collects normalized records and hands them to flush in fixed-size
// chunks, so each chunk becomes its own transaction.
type chunkBuffer struct {
	size    int
	buffer  []*domain.ShipmentRecord
	flushFn func(ctx context.Context, records []*domain.ShipmentRecord) error
}

func newChunkBuffer(size int, flushFn func(ctx context.Context, records []*domain.ShipmentRecord) error) *chunkBuffer {
	if size <= 0 {
		size = defaultChunkSize
	}
	return &chunkBuffer{
		size:    size,
		buffer:  make([]*domain.ShipmentRecord, 0, size),
		flushFn: flushFn,
	}
}

// Add buffers rec and flushes once the buffer is full.
func (b *chunkBuffer) Add(ctx context.Context, rec *domain.ShipmentRecord) error {
	b.buffer = append(b.buffer, rec)
	if len(b.buffer) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes whatever is buffered. The buffer is cleared only on success.
func (b *chunkBuffer) Flush(ctx context.Context) error {
	if len(b.buffer) == 0 {
		return nil
	}
	if err := b.flushFn(ctx, b.buffer); err != nil {
		return err
	}
	b.buffer = make([]*domain.ShipmentRecord, 0, b.size)
	return nil
}
