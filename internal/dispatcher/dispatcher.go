package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dod-ccpo/atat-sub000/internal/store"
	"github.com/dod-ccpo/atat-sub000/pkg/kafka"
	"github.com/dod-ccpo/atat-sub000/pkg/logging"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
	"github.com/dod-ccpo/atat-sub000/pkg/monitoring"
)

// Producer is the slice of the Kafka producer the dispatcher needs.
type Producer interface {
	EnqueueTask(topic string, task kafka.Task) error
}

// Store is the slice of the persistence layer the dispatcher sweeps.
type Store interface {
	PendingPortfolios(ctx context.Context) ([]models.Portfolio, error)
	PendingApplications(ctx context.Context) ([]models.Application, error)
	PendingEnvironments(ctx context.Context) ([]store.PendingEnvironment, error)
	PendingRoleGroups(ctx context.Context) ([]store.RoleGroup, error)
}

// Dispatcher periodically sweeps the database for provisionable work and
// publishes one task per eligible entity. It never claims rows itself;
// duplicate tasks are harmless because workers claim before acting.
type Dispatcher struct {
	store    Store
	producer Producer
	log      logging.Logger
	interval time.Duration

	tasksEnqueued *prometheus.CounterVec
	sweepErrors   *prometheus.CounterVec

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a dispatcher sweeping at the given interval.
func New(st Store, producer Producer, log logging.Logger, interval time.Duration, metrics *monitoring.MetricsCollector) *Dispatcher {
	d := &Dispatcher{
		store:    st,
		producer: producer,
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	if metrics != nil {
		d.tasksEnqueued = metrics.NewCounter("dispatcher_tasks_enqueued_total",
			"Provisioning tasks published to the queue", []string{"topic"})
		d.sweepErrors = metrics.NewCounter("dispatcher_sweep_errors_total",
			"Failed dispatcher sweep queries", []string{"sweep"})
	}
	return d
}

// Start launches the sweep loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	d.log.WithField("interval", d.interval.String()).Info("Dispatcher started")
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
	d.log.Info("Dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), d.interval)
			d.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep runs one pass over all four eligibility queries. Each sweep is
// independent; a failing query skips its entity kind until the next tick.
func (d *Dispatcher) Sweep(ctx context.Context) {
	d.sweepPortfolios(ctx)
	d.sweepApplications(ctx)
	d.sweepEnvironments(ctx)
	d.sweepRoles(ctx)
}

func (d *Dispatcher) sweepPortfolios(ctx context.Context) {
	portfolios, err := d.store.PendingPortfolios(ctx)
	if err != nil {
		d.sweepError("portfolios", err)
		return
	}
	for _, p := range portfolios {
		d.enqueue(kafka.TopicPortfolios, kafka.Task{
			TaskID:      uuid.New().String(),
			PortfolioID: p.ID,
			Attempt:     1,
		})
	}
}

func (d *Dispatcher) sweepApplications(ctx context.Context) {
	apps, err := d.store.PendingApplications(ctx)
	if err != nil {
		d.sweepError("applications", err)
		return
	}
	for _, a := range apps {
		d.enqueue(kafka.TopicApplications, kafka.Task{
			TaskID:        uuid.New().String(),
			PortfolioID:   a.PortfolioID,
			ApplicationID: a.ID,
			Attempt:       1,
		})
	}
}

func (d *Dispatcher) sweepEnvironments(ctx context.Context) {
	envs, err := d.store.PendingEnvironments(ctx)
	if err != nil {
		d.sweepError("environments", err)
		return
	}
	for _, pe := range envs {
		d.enqueue(kafka.TopicEnvironments, kafka.Task{
			TaskID:        uuid.New().String(),
			PortfolioID:   pe.PortfolioID,
			ApplicationID: pe.ApplicationID,
			EnvironmentID: pe.Environment.ID,
			Attempt:       1,
		})
	}
}

func (d *Dispatcher) sweepRoles(ctx context.Context) {
	groups, err := d.store.PendingRoleGroups(ctx)
	if err != nil {
		d.sweepError("roles", err)
		return
	}
	for _, g := range groups {
		d.enqueue(kafka.TopicRoles, kafka.Task{
			TaskID:             uuid.New().String(),
			PortfolioID:        g.PortfolioID,
			UserID:             g.UserID,
			EnvironmentRoleIDs: g.RoleIDs,
			Attempt:            1,
		})
	}
}

func (d *Dispatcher) enqueue(topic string, task kafka.Task) {
	if err := d.producer.EnqueueTask(topic, task); err != nil {
		kind, id := task.Entity()
		d.log.WithFields(logging.Fields{
			"topic":       topic,
			"entity_kind": kind,
			"entity_id":   id,
			"error":       err.Error(),
		}).Error("Failed to enqueue provisioning task")
		return
	}
	if d.tasksEnqueued != nil {
		d.tasksEnqueued.WithLabelValues(topic).Inc()
	}
}

func (d *Dispatcher) sweepError(sweep string, err error) {
	d.log.WithFields(logging.Fields{"sweep": sweep, "error": err.Error()}).Error("Dispatcher sweep failed")
	if d.sweepErrors != nil {
		d.sweepErrors.WithLabelValues(sweep).Inc()
	}
}
