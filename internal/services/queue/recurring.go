package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// Dispatcher holds named recurring scrape configs and enqueues a task for
// each one whose next run is due. The check runs on a fixed tick, so actual
// fire times land within one tick of the schedule.
type Dispatcher struct {
	queue    interfaces.QueueService
	logger   arbor.ILogger
	interval time.Duration

	mu      sync.Mutex
	configs map[string]*models.RecurringConfig
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewDispatcher creates a recurring-task dispatcher checking every minute.
func NewDispatcher(queue interfaces.QueueService) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		logger:   common.GetLogger(),
		interval: time.Minute,
		configs:  make(map[string]*models.RecurringConfig),
	}
}

// Register adds or replaces a recurring config by name. A zero NextRun is
// initialized to now plus the interval.
func (d *Dispatcher) Register(config models.RecurringConfig) error {
	if config.Name == "" {
		return fmt.Errorf("recurring config requires a name")
	}
	if config.BoardID == "" {
		return fmt.Errorf("recurring config %q requires a board", config.Name)
	}
	if config.Interval < time.Minute {
		return fmt.Errorf("recurring config %q interval below one minute", config.Name)
	}
	if config.NextRun.IsZero() {
		config.NextRun = time.Now().Add(config.Interval)
	}
	if config.Priority == 0 {
		config.Priority = models.PriorityNormal
	}

	d.mu.Lock()
	d.configs[config.Name] = &config
	d.mu.Unlock()

	d.logger.Info().
		Str("name", config.Name).
		Str("board_id", config.BoardID).
		Str("interval", config.Interval.String()).
		Msg("Recurring scrape registered")
	return nil
}

// Unregister removes a recurring config. Returns false when absent.
func (d *Dispatcher) Unregister(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.configs[name]; !ok {
		return false
	}
	delete(d.configs, name)
	return true
}

// List returns a snapshot of all registered configs.
func (d *Dispatcher) List() []models.RecurringConfig {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.RecurringConfig, 0, len(d.configs))
	for _, c := range d.configs {
		out = append(out, *c)
	}
	return out
}

// Start launches the tick loop. Idempotent.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				d.dispatchDue(time.Now())
			}
		}
	}()
}

// Stop halts the tick loop. Idempotent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	done := d.done
	d.mu.Unlock()

	<-done
}

// dispatchDue enqueues a task for every enabled config whose NextRun has
// passed, then advances NextRun by the interval.
func (d *Dispatcher) dispatchDue(now time.Time) {
	d.mu.Lock()
	var due []*models.RecurringConfig
	for _, c := range d.configs {
		if c.Enabled && !c.NextRun.After(now) {
			due = append(due, c)
		}
	}
	d.mu.Unlock()

	for _, c := range due {
		task := &models.ScrapeTask{
			BoardID:  c.BoardID,
			Query:    c.Query,
			Location: c.Location,
			MaxPages: c.MaxPages,
			Priority: c.Priority,
		}

		id, err := d.queue.Enqueue(task)
		if err != nil {
			d.logger.Warn().
				Str("name", c.Name).
				Err(err).
				Msg("Recurring scrape enqueue failed")
			continue
		}

		d.mu.Lock()
		fired := now
		c.LastRun = &fired
		c.NextRun = c.NextRun.Add(c.Interval)
		// Catch up after long outages rather than bursting
		if !c.NextRun.After(now) {
			c.NextRun = now.Add(c.Interval)
		}
		d.mu.Unlock()

		d.logger.Info().
			Str("name", c.Name).
			Str("task_id", id).
			Str("next_run", c.NextRun.Format(time.RFC3339)).
			Msg("Recurring scrape dispatched")
	}
}
