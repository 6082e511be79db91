package dc

import (
	"context"
	"time"

	"go.uber.org/zap"

	"umpire/internal/game/app/port"
	"umpire/internal/game/entity"
	"umpire/modules/kit/logx"
)

const defaultRecordQueue = 128

// TurnRecorder 异步追加回合摘要。队列满时丢弃新记录并记日志，
// 不阻塞对局 actor。
type TurnRecorder struct {
	repo    port.TurnRecordRepository
	log     logx.Logger
	timeout time.Duration

	queue chan entity.TurnRecord
	done  chan struct{}
}

func NewTurnRecorder(repo port.TurnRecordRepository, queue int, log logx.Logger) *TurnRecorder {
	if queue <= 0 {
		queue = defaultRecordQueue
	}
	if log == nil {
		log = logx.Nop()
	}
	r := &TurnRecorder{
		repo:    repo,
		log:     log,
		timeout: 3 * time.Second,
		queue:   make(chan entity.TurnRecord, queue),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record 可直接作为 service.TurnListener 注册。
func (r *TurnRecorder) Record(rec entity.TurnRecord) {
	select {
	case r.queue <- rec:
	default:
		r.log.Warn("turn record dropped", zap.Int64("game_id", int64(rec.GameID)), zap.Int("turn", rec.Turn))
	}
}

// Close 停止接收并等待队列写完。Close 之后不能再调用 Record。
func (r *TurnRecorder) Close(ctx context.Context) error {
	close(r.queue)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *TurnRecorder) loop() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.repo.AppendTurn(ctx, &rec)
		cancel()
		if err != nil {
			r.log.Error("turn record append failed", zap.Int64("game_id", int64(rec.GameID)), zap.Int("turn", rec.Turn), zap.Error(err))
		}
	}
}
