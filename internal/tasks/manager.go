package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type TaskFunc func(ctx context.Context) error

// 1回の実行の制限時間
const runTimeout = 5 * time.Minute

// 定期タスクの置き場。リクエスト処理とは独立したgoroutineで回る
type Manager struct {
	tasks sync.Map
}

func NewManager() *Manager {
	return &Manager{}
}

// タスクを登録してスケジュールを開始する
// startupDelay経過後に1回実行し、以後はinterval間隔で繰り返す
func (m *Manager) Register(name string, startupDelay time.Duration, interval time.Duration, fn TaskFunc) {
	task := &runnableTask{
		name:    name,
		handler: fn,
	}
	m.tasks.Store(name, task)

	go m.scheduler(task, startupDelay, interval)
}

// 手動で1回実行する
func (m *Manager) Trigger(name string) error {
	t, ok := m.tasks.Load(name)
	if !ok {
		return fmt.Errorf("task not found: %s", name)
	}
	t.(*runnableTask).run()
	return nil
}

func (m *Manager) scheduler(task *runnableTask, startupDelay time.Duration, interval time.Duration) {
	if startupDelay > 0 {
		time.Sleep(startupDelay)
	}
	task.run()

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	for range ticker.C {
		task.run()
	}
}

type runnableTask struct {
	name    string
	handler TaskFunc

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// 失敗はログに残すだけで伝播させない。次回の定期実行が実質のリトライ
func (t *runnableTask) run() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		log.Warn().Str("task", t.name).Msg("task is already running, skipping execution")
		return
	}
	t.running = true
	t.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", t.name).Interface("panic", r).Msg("task panicked")
		}
		t.mu.Lock()
		t.running = false
		t.lastRun = time.Now()
		t.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	err := t.handler(ctx)
	duration := time.Since(start)

	if err != nil {
		log.Error().Str("task", t.name).Dur("duration", duration).Err(err).Msg("task failed")
	} else {
		log.Info().Str("task", t.name).Dur("duration", duration).Msg("task completed")
	}
}
