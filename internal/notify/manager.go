package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"party-rooms/internal/event"
)

// Manager fans room results out to a webhook. Enqueueing never blocks the
// room loop: a full dispatch queue drops the notification and counts it.
type Manager struct {
	cfg    Config
	client *http.Client

	dispatchCh chan pushJob
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

func NewManager(cfg Config) *Manager {
	buffer := cfg.DispatchBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Manager{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		dispatchCh: make(chan pushJob, buffer),
		done:       make(chan struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	log.Info().
		Int("workers", m.cfg.Workers).
		Str("webhook_url", m.cfg.WebhookURL).
		Msg("notify manager started")
}

// Stop drains nothing; in-flight requests finish, queued jobs are dropped.
func (m *Manager) Stop() {
	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}

// RoomEvent receives every result the coordinators publish. Only round and
// game results leave the process.
func (m *Manager) RoomEvent(roomCode, gameType string, ev event.Event) {
	if !m.cfg.Enabled {
		return
	}
	switch ev.Type {
	case event.TypeRoundResult, event.TypeGameEnded:
	default:
		return
	}
	select {
	case m.dispatchCh <- jobFromEvent(roomCode, gameType, ev):
		metricNotifyQueuedTotal.Add(1)
	default:
		metricNotifyDroppedTotal.Add(1)
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			m.processJob(ctx, job)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job pushJob) {
	if err := m.send(ctx, job.note); err != nil {
		metricNotifyFailedTotal.Add(1)
		if job.attempt >= m.cfg.RetryMax {
			metricNotifyRetryDroppedTotal.Add(1)
			log.Warn().Err(err).
				Str("room_code", job.note.Room).
				Str("event", job.note.Event).
				Msg("notification dropped after retries")
			return
		}
		job.attempt++
		metricNotifyRetryTotal.Add(1)
		delay := m.cfg.RetryBase * time.Duration(1<<(job.attempt-1))
		time.AfterFunc(delay, func() {
			select {
			case <-m.done:
			case m.dispatchCh <- job:
			default:
				metricNotifyDroppedTotal.Add(1)
			}
		})
		return
	}
	metricNotifySentTotal.Add(1)
}

func (m *Manager) send(ctx context.Context, note Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
