package scorecard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/domain"
)

// Source is the consumer side of the scorecard queue.
type Source interface {
	Next(ctx context.Context, wait time.Duration) (domain.ScorecardJob, bool, error)
}

// Store is the blob storage the documents land in.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
}

// Key is the blob path of a candidate's scorecard.
func Key(year int, stream, uid string) string {
	return fmt.Sprintf("scorecards/%d/%s/%s.pdf", year, stream, uid)
}

// Worker consumes scorecard jobs one at a time.
type Worker struct {
	source   Source
	store    Store
	renderer Renderer
	wait     time.Duration
}

func NewWorker(source Source, store Store, renderer Renderer, wait time.Duration) *Worker {
	if renderer == nil {
		renderer = PDFRenderer{}
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Worker{source: source, store: store, renderer: renderer, wait: wait}
}

// Run consumes until ctx is cancelled. A job already taken from the queue is
// finished with a detached context before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Msg("scorecard worker started")
	defer log.Info().Msg("scorecard worker stopped")
	for {
		if ctx.Err() != nil {
			return nil
		}
		job, ok, err := w.source.Next(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("scorecard queue receive failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		w.Process(context.WithoutCancel(ctx), job)
	}
}

// Process renders every row of the job. Row failures are logged and skipped.
// It returns the number of documents written.
func (w *Worker) Process(ctx context.Context, job domain.ScorecardJob) int {
	written := 0
	for _, row := range job.Rows {
		card := Card{CommonName: job.CommonName, Year: job.Year, Stream: job.Stream, Row: row}
		if err := w.write(ctx, card); err != nil {
			log.Error().Err(err).Str("uid", row.UID).Int("year", job.Year).Str("stream", job.Stream).Msg("scorecard failed")
			continue
		}
		written++
	}
	log.Info().Int("year", job.Year).Str("stream", job.Stream).Int("rows", len(job.Rows)).Int("written", written).Msg("scorecard job processed")
	return written
}

func (w *Worker) write(ctx context.Context, card Card) error {
	var buf bytes.Buffer
	if err := w.renderer.Render(&buf, card); err != nil {
		return err
	}
	return w.store.Put(ctx, Key(card.Year, card.Stream, card.Row.UID), &buf)
}
