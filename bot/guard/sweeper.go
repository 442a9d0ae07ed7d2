package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"teobot/bot/gateway"
	"teobot/core/logger"
)

// sweepJob is one message to delete.
type sweepJob struct {
	ctx       context.Context
	chatID    int64
	messageID int
}

// sweeper deletes user-authored messages in the background. Deletes are
// at-most-once: a full queue drops the job and every failure is swallowed.
type sweeper struct {
	gw      gateway.Gateway
	jobs    chan sweepJob
	workers int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func newSweeper(gw gateway.Gateway, workers, queue int) *sweeper {
	return &sweeper{
		gw:      gw,
		jobs:    make(chan sweepJob, queue),
		workers: workers,
	}
}

func (s *sweeper) start(ctx context.Context) {
	s.startOnce.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.work(ctx)
		}
	})
}

func (s *sweeper) stop() {
	s.stopOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

func (s *sweeper) enqueue(ctx context.Context, chatID int64, messageID int) {
	job := sweepJob{ctx: context.WithoutCancel(ctx), chatID: chatID, messageID: messageID}
	select {
	case s.jobs <- job:
	default:
		logger.Warn(ctx, component, "sweep.drop",
			slog.Int("msg_id", messageID), slog.Int64("chat_id", chatID))
	}
}

func (s *sweeper) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.sweep(job)
		}
	}
}

func (s *sweeper) sweep(job sweepJob) {
	ctx, cancel := context.WithTimeout(job.ctx, 10*time.Second)
	defer cancel()

	err := s.gw.Delete(ctx, job.chatID, job.messageID)
	switch kind := gateway.KindOf(err); {
	case err == nil, kind == gateway.KindNotFound:
		logger.Debug(ctx, component, "sweep",
			slog.Int("msg_id", job.messageID), slog.Int64("chat_id", job.chatID))
	default:
		logger.Warn(ctx, component, "sweep",
			slog.String("status", "swallowed"),
			slog.Int("msg_id", job.messageID),
			slog.Int64("chat_id", job.chatID),
			slog.String("err_kind", string(kind)),
			slog.Any("err", err))
	}
}
