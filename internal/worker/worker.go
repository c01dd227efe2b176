package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dod-ccpo/atat-sub000/internal/csp"
	"github.com/dod-ccpo/atat-sub000/internal/fsm"
	"github.com/dod-ccpo/atat-sub000/internal/stages"
	"github.com/dod-ccpo/atat-sub000/pkg/kafka"
	"github.com/dod-ccpo/atat-sub000/pkg/logging"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
	"github.com/dod-ccpo/atat-sub000/pkg/monitoring"
)

// Store is the slice of the persistence layer workers use.
type Store interface {
	GetPortfolioForProvisioning(ctx context.Context, id string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	GetEnvironment(ctx context.Context, id string) (*models.Environment, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetEnvironmentRoles(ctx context.Context, ids []string) ([]models.EnvironmentRole, error)
	SetApplicationCloudID(ctx context.Context, id, cloudID string) error
	SetEnvironmentCloudID(ctx context.Context, id, cloudID string) error
	SetEnvironmentRoleCloudIDs(ctx context.Context, ids []string, cloudID string) error
	RecordJobFailure(ctx context.Context, f *models.JobFailure) error
}

// Guard is the claim interface workers take before touching an entity.
type Guard interface {
	ClaimPortfolio(ctx context.Context, id string) (bool, error)
	ReleasePortfolio(ctx context.Context, id string) error
	ClaimApplication(ctx context.Context, id string) (bool, error)
	ReleaseApplication(ctx context.Context, id string) error
	ClaimEnvironment(ctx context.Context, id string) (bool, error)
	ReleaseEnvironment(ctx context.Context, id string) error
	ClaimRoles(ctx context.Context, ids []string) (bool, error)
	ReleaseRoles(ctx context.Context, ids []string) error
}

// Machine advances portfolio provisioning by one stage.
type Machine interface {
	TriggerNextTransition(ctx context.Context, p *models.Portfolio, extra models.JSONB) (stages.State, error)
}

// Producer is the slice of the Kafka producer workers need for retries and
// dead-lettering.
type Producer interface {
	EnqueueTask(topic string, task kafka.Task) error
	ProduceMessage(topic string, key []byte, value []byte, headers map[string]string) error
}

// Config tunes a worker.
type Config struct {
	// MaxAttempts caps task-level retries via re-enqueue.
	MaxAttempts int

	// BillingAccountName is injected into portfolio stage payloads.
	BillingAccountName string

	// RetryBaseDelay and RetryMaxDelay bound the in-process retry backoff
	// around one-shot driver calls.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryMax       int
}

// DefaultConfig returns worker defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  10 * time.Second,
		RetryMax:       2,
	}
}

// Worker consumes provisioning tasks and executes them. Portfolio tasks
// advance the state machine by one stage; application, environment, and
// role tasks are idempotent one-shot creations guarded by claims.
type Worker struct {
	store    Store
	guard    Guard
	machine  Machine
	driver   csp.Driver
	producer Producer
	log      logging.Logger
	cfg      Config

	// retry wraps one-shot driver calls with quick in-process retries for
	// transient errors; task-level retries go back through the queue.
	retry failsafe.Executor[string]

	tasksProcessed *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
}

// New builds a worker.
func New(st Store, guard Guard, machine Machine, driver csp.Driver, producer Producer, log logging.Logger, cfg Config, metrics *monitoring.MetricsCollector) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}

	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay).
		WithMaxRetries(cfg.RetryMax).
		HandleIf(func(_ string, err error) bool {
			return csp.IsTransient(err)
		}).
		Build()

	w := &Worker{
		store:    st,
		guard:    guard,
		machine:  machine,
		driver:   driver,
		producer: producer,
		log:      log,
		cfg:      cfg,
		retry:    failsafe.With(policy),
	}
	if metrics != nil {
		w.tasksProcessed = metrics.NewCounter("worker_tasks_processed_total",
			"Provisioning tasks handled", []string{"topic", "outcome"})
		w.tasksFailed = metrics.NewCounter("worker_tasks_failed_total",
			"Provisioning tasks recorded as job failures", []string{"topic"})
	}
	return w
}

// Register wires the worker's handlers into a consumer.
func (w *Worker) Register(c *kafka.Consumer) {
	c.AddHandler(kafka.TopicPortfolios, w.handle(kafka.TopicPortfolios, w.processPortfolio))
	c.AddHandler(kafka.TopicApplications, w.handle(kafka.TopicApplications, w.processApplication))
	c.AddHandler(kafka.TopicEnvironments, w.handle(kafka.TopicEnvironments, w.processEnvironment))
	c.AddHandler(kafka.TopicRoles, w.handle(kafka.TopicRoles, w.processRoles))
}

// handle wraps a task processor with decoding, retry classification, and
// failure bookkeeping. The returned handler only reports an error for
// infrastructure faults where redelivery is the right answer; task
// outcomes always commit.
func (w *Worker) handle(topic string, process func(ctx context.Context, task kafka.Task) error) kafka.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var task kafka.Task
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			w.deadLetter(msg, fmt.Errorf("undecodable task: %w", err))
			return nil
		}
		kind, id := task.Entity()
		if kind == "" {
			w.deadLetter(msg, errors.New("task names no entity"))
			return nil
		}
		if task.Attempt < 1 {
			task.Attempt = 1
		}

		log := w.log.WithFields(logging.Fields{
			"topic":       topic,
			"task_id":     task.TaskID,
			"entity_kind": kind,
			"entity_id":   id,
			"attempt":     task.Attempt,
		})

		err := process(ctx, task)
		switch {
		case err == nil:
			w.count(topic, "ok")
			return nil

		case errors.Is(err, errSkipped):
			w.count(topic, "skipped")
			return nil

		case csp.IsTransient(err) && task.Attempt < w.cfg.MaxAttempts:
			retry := task
			retry.Attempt++
			if enqErr := w.producer.EnqueueTask(topic, retry); enqErr != nil {
				log.WithField("error", enqErr.Error()).Error("Failed to re-enqueue task, leaving for redelivery")
				return enqErr
			}
			log.WithField("error", err.Error()).Warn("Transient task failure, re-enqueued")
			w.count(topic, "retried")
			return nil

		default:
			failure := &models.JobFailure{
				EntityKind: kind,
				EntityID:   id,
				TaskID:     task.TaskID,
				Error:      err.Error(),
			}
			if recErr := w.store.RecordJobFailure(ctx, failure); recErr != nil {
				log.WithField("error", recErr.Error()).Error("Failed to record job failure")
				return recErr
			}
			log.WithField("error", err.Error()).Error("Provisioning task failed permanently")
			w.count(topic, "failed")
			if w.tasksFailed != nil {
				w.tasksFailed.WithLabelValues(topic).Inc()
			}
			return nil
		}
	}
}

// errSkipped marks tasks that found nothing to do: lost a claim race, or
// the entity was already provisioned or is not actionable yet.
var errSkipped = errors.New("task skipped")

func (w *Worker) processPortfolio(ctx context.Context, task kafka.Task) error {
	ok, err := w.guard.ClaimPortfolio(ctx, task.PortfolioID)
	if err != nil {
		return err
	}
	if !ok {
		return errSkipped
	}
	defer func() {
		if err := w.guard.ReleasePortfolio(context.Background(), task.PortfolioID); err != nil {
			w.log.WithFields(logging.Fields{"portfolio_id": task.PortfolioID, "error": err.Error()}).
				Warn("Failed to release portfolio claim")
		}
	}()

	p, err := w.store.GetPortfolioForProvisioning(ctx, task.PortfolioID)
	if err != nil {
		return err
	}

	extra, err := w.portfolioBaseline(ctx, p)
	if err != nil {
		return err
	}

	_, err = w.machine.TriggerNextTransition(ctx, p, extra)
	if errors.Is(err, fsm.ErrNoTransition) || errors.Is(err, fsm.ErrNotReadyToResume) {
		return errSkipped
	}
	return err
}

// portfolioBaseline assembles the portfolio attributes every stage payload
// may draw on, merged under the accumulated stage results.
func (w *Worker) portfolioBaseline(ctx context.Context, p *models.Portfolio) (models.JSONB, error) {
	extra := models.JSONB{
		"portfolio_id":          p.ID,
		"portfolio_name":        p.Name,
		"portfolio_description": p.Description,
		"billing_account_name":  w.cfg.BillingAccountName,
	}
	if p.OwnerID != nil {
		owner, err := w.store.GetUser(ctx, *p.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("portfolio owner: %w", err)
		}
		extra["owner_email"] = owner.Email
		extra["owner_display_name"] = owner.DisplayName
	}
	return extra, nil
}

func (w *Worker) processApplication(ctx context.Context, task kafka.Task) error {
	ok, err := w.guard.ClaimApplication(ctx, task.ApplicationID)
	if err != nil {
		return err
	}
	if !ok {
		return errSkipped
	}

	app, err := w.store.GetApplication(ctx, task.ApplicationID)
	if err != nil {
		w.releaseApplication(task.ApplicationID)
		return err
	}
	if app.CloudID != nil {
		w.releaseApplication(task.ApplicationID)
		return errSkipped
	}

	tenant, parent, err := w.portfolioCloudContext(ctx, app.PortfolioID)
	if err != nil {
		w.releaseApplication(task.ApplicationID)
		return err
	}

	cloudID, err := w.retry.WithContext(ctx).Get(func() (string, error) {
		result, err := w.driver.CreateApplication(ctx, csp.ApplicationPayload{
			TenantID:      tenant,
			ApplicationID: app.ID,
			DisplayName:   app.Name,
			ParentID:      parent,
		})
		if err != nil {
			return "", err
		}
		return result.ID, nil
	})
	if err != nil {
		w.releaseApplication(task.ApplicationID)
		return err
	}

	// Releases the claim together with the write.
	return w.store.SetApplicationCloudID(ctx, app.ID, cloudID)
}

func (w *Worker) processEnvironment(ctx context.Context, task kafka.Task) error {
	ok, err := w.guard.ClaimEnvironment(ctx, task.EnvironmentID)
	if err != nil {
		return err
	}
	if !ok {
		return errSkipped
	}

	env, err := w.store.GetEnvironment(ctx, task.EnvironmentID)
	if err != nil {
		w.releaseEnvironment(task.EnvironmentID)
		return err
	}
	if env.CloudID != nil {
		w.releaseEnvironment(task.EnvironmentID)
		return errSkipped
	}

	app, err := w.store.GetApplication(ctx, env.ApplicationID)
	if err != nil {
		w.releaseEnvironment(task.EnvironmentID)
		return err
	}
	if app.CloudID == nil {
		w.releaseEnvironment(task.EnvironmentID)
		return errSkipped
	}

	tenant, _, err := w.portfolioCloudContext(ctx, app.PortfolioID)
	if err != nil {
		w.releaseEnvironment(task.EnvironmentID)
		return err
	}

	cloudID, err := w.retry.WithContext(ctx).Get(func() (string, error) {
		result, err := w.driver.CreateEnvironment(ctx, csp.EnvironmentPayload{
			TenantID:      tenant,
			EnvironmentID: env.ID,
			DisplayName:   env.Name,
			ParentID:      *app.CloudID,
		})
		if err != nil {
			return "", err
		}
		return result.ID, nil
	})
	if err != nil {
		w.releaseEnvironment(task.EnvironmentID)
		return err
	}

	return w.store.SetEnvironmentCloudID(ctx, env.ID, cloudID)
}

// processRoles provisions every pending role a user holds in one portfolio
// as a unit: one cloud user, then one role assignment per environment.
func (w *Worker) processRoles(ctx context.Context, task kafka.Task) error {
	ok, err := w.guard.ClaimRoles(ctx, task.EnvironmentRoleIDs)
	if err != nil {
		return err
	}
	if !ok {
		return errSkipped
	}
	defer func() {
		if err := w.guard.ReleaseRoles(context.Background(), task.EnvironmentRoleIDs); err != nil {
			w.log.WithFields(logging.Fields{"user_id": task.UserID, "error": err.Error()}).
				Warn("Failed to release role claims")
		}
	}()

	roles, err := w.store.GetEnvironmentRoles(ctx, task.EnvironmentRoleIDs)
	if err != nil {
		return err
	}

	user, err := w.store.GetUser(ctx, task.UserID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return errSkipped
	}

	tenant, _, err := w.portfolioCloudContext(ctx, task.PortfolioID)
	if err != nil {
		return err
	}

	userObjectID, err := w.retry.WithContext(ctx).Get(func() (string, error) {
		result, err := w.driver.CreateUser(ctx, csp.UserPayload{
			TenantID:    tenant,
			Email:       user.Email,
			DisplayName: user.DisplayName,
		})
		if err != nil {
			return "", err
		}
		return result.ID, nil
	})
	if err != nil {
		return err
	}

	for _, role := range roles {
		if role.CloudID != nil || role.Status != models.RoleStatusActive {
			continue
		}
		env, err := w.store.GetEnvironment(ctx, role.EnvironmentID)
		if err != nil {
			return err
		}
		if env.CloudID == nil {
			continue
		}

		rr := role
		assignmentID, err := w.retry.WithContext(ctx).Get(func() (string, error) {
			result, err := w.driver.CreateUserRole(ctx, csp.UserRolePayload{
				TenantID:          tenant,
				UserObjectID:      userObjectID,
				ManagementGroupID: *env.CloudID,
				Role:              rr.Role,
			})
			if err != nil {
				return "", err
			}
			return result.ID, nil
		})
		if err != nil {
			return err
		}

		if err := w.store.SetEnvironmentRoleCloudIDs(ctx, []string{role.ID}, assignmentID); err != nil {
			return err
		}
	}
	return nil
}

// portfolioCloudContext pulls the tenant and root management group a
// one-shot creation hangs under from the portfolio's accumulated data.
func (w *Worker) portfolioCloudContext(ctx context.Context, portfolioID string) (tenantID, mgmtGroupID string, err error) {
	p, err := w.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return "", "", err
	}
	tenantID, _ = p.CSPData["tenant_id"].(string)
	mgmtGroupID, _ = p.CSPData["initial_management_group_id"].(string)
	if tenantID == "" {
		return "", "", fmt.Errorf("portfolio %s has no provisioned tenant", portfolioID)
	}
	return tenantID, mgmtGroupID, nil
}

func (w *Worker) releaseApplication(id string) {
	if err := w.guard.ReleaseApplication(context.Background(), id); err != nil {
		w.log.WithFields(logging.Fields{"application_id": id, "error": err.Error()}).
			Warn("Failed to release application claim")
	}
}

func (w *Worker) releaseEnvironment(id string) {
	if err := w.guard.ReleaseEnvironment(context.Background(), id); err != nil {
		w.log.WithFields(logging.Fields{"environment_id": id, "error": err.Error()}).
			Warn("Failed to release environment claim")
	}
}

func (w *Worker) deadLetter(msg kafka.Message, cause error) {
	payload, err := kafka.EncodeDLQMessage(msg, cause, "provisioner")
	if err != nil {
		w.log.WithField("error", err.Error()).Error("Failed to encode DLQ message")
		return
	}
	headers := map[string]string{
		"original_topic": msg.Topic,
		"offset":         strconv.FormatInt(msg.Offset, 10),
	}
	if err := w.producer.ProduceMessage(kafka.TopicDLQ, msg.Key, payload, headers); err != nil {
		w.log.WithField("error", err.Error()).Error("Failed to publish DLQ message")
	}
}

func (w *Worker) count(topic, outcome string) {
	if w.tasksProcessed != nil {
		w.tasksProcessed.WithLabelValues(topic, outcome).Inc()
	}
}
