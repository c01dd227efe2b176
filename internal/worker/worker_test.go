package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dod-ccpo/atat-sub000/internal/csp"
	"github.com/dod-ccpo/atat-sub000/internal/stages"
	"github.com/dod-ccpo/atat-sub000/pkg/kafka"
	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

type fakeGuard struct {
	denyPortfolio bool
	denyRoles     bool
	released      []string
}

func (g *fakeGuard) ClaimPortfolio(_ context.Context, id string) (bool, error) {
	return !g.denyPortfolio, nil
}
func (g *fakeGuard) ReleasePortfolio(_ context.Context, id string) error {
	g.released = append(g.released, id)
	return nil
}
func (g *fakeGuard) ClaimApplication(_ context.Context, id string) (bool, error) { return true, nil }
func (g *fakeGuard) ReleaseApplication(_ context.Context, id string) error {
	g.released = append(g.released, id)
	return nil
}
func (g *fakeGuard) ClaimEnvironment(_ context.Context, id string) (bool, error) { return true, nil }
func (g *fakeGuard) ReleaseEnvironment(_ context.Context, id string) error {
	g.released = append(g.released, id)
	return nil
}
func (g *fakeGuard) ClaimRoles(_ context.Context, ids []string) (bool, error) {
	return !g.denyRoles, nil
}
func (g *fakeGuard) ReleaseRoles(_ context.Context, ids []string) error {
	g.released = append(g.released, ids...)
	return nil
}

type fakeWorkerStore struct {
	portfolios map[string]*models.Portfolio
	apps       map[string]*models.Application
	envs       map[string]*models.Environment
	users      map[string]*models.User
	roles      map[string]*models.EnvironmentRole

	appCloudIDs  map[string]string
	envCloudIDs  map[string]string
	roleCloudIDs map[string]string
	failures     []models.JobFailure
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{
		portfolios:   make(map[string]*models.Portfolio),
		apps:         make(map[string]*models.Application),
		envs:         make(map[string]*models.Environment),
		users:        make(map[string]*models.User),
		roles:        make(map[string]*models.EnvironmentRole),
		appCloudIDs:  make(map[string]string),
		envCloudIDs:  make(map[string]string),
		roleCloudIDs: make(map[string]string),
	}
}

func (s *fakeWorkerStore) GetPortfolioForProvisioning(_ context.Context, id string) (*models.Portfolio, error) {
	if p, ok := s.portfolios[id]; ok {
		return p, nil
	}
	return nil, errors.New("portfolio not found")
}
func (s *fakeWorkerStore) GetPortfolio(_ context.Context, id string) (*models.Portfolio, error) {
	if p, ok := s.portfolios[id]; ok {
		return p, nil
	}
	return nil, errors.New("portfolio not found")
}
func (s *fakeWorkerStore) GetApplication(_ context.Context, id string) (*models.Application, error) {
	if a, ok := s.apps[id]; ok {
		return a, nil
	}
	return nil, errors.New("application not found")
}
func (s *fakeWorkerStore) GetEnvironment(_ context.Context, id string) (*models.Environment, error) {
	if e, ok := s.envs[id]; ok {
		return e, nil
	}
	return nil, errors.New("environment not found")
}
func (s *fakeWorkerStore) GetUser(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}
func (s *fakeWorkerStore) GetEnvironmentRoles(_ context.Context, ids []string) ([]models.EnvironmentRole, error) {
	var out []models.EnvironmentRole
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}
func (s *fakeWorkerStore) SetApplicationCloudID(_ context.Context, id, cloudID string) error {
	s.appCloudIDs[id] = cloudID
	return nil
}
func (s *fakeWorkerStore) SetEnvironmentCloudID(_ context.Context, id, cloudID string) error {
	s.envCloudIDs[id] = cloudID
	return nil
}
func (s *fakeWorkerStore) SetEnvironmentRoleCloudIDs(_ context.Context, ids []string, cloudID string) error {
	for _, id := range ids {
		s.roleCloudIDs[id] = cloudID
	}
	return nil
}
func (s *fakeWorkerStore) RecordJobFailure(_ context.Context, f *models.JobFailure) error {
	s.failures = append(s.failures, *f)
	return nil
}

type fakeMachine struct {
	err   error
	calls int
}

func (m *fakeMachine) TriggerNextTransition(_ context.Context, p *models.Portfolio, _ models.JSONB) (stages.State, error) {
	m.calls++
	if m.err != nil {
		return stages.State{}, m.err
	}
	return stages.SystemStateOf(stages.Started), nil
}

type fakeProducer struct {
	tasks    []kafka.Task
	topics   []string
	messages [][]byte
}

func (p *fakeProducer) EnqueueTask(topic string, task kafka.Task) error {
	p.topics = append(p.topics, topic)
	p.tasks = append(p.tasks, task)
	return nil
}
func (p *fakeProducer) ProduceMessage(topic string, key, value []byte, headers map[string]string) error {
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, value)
	return nil
}

func testWorkerLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func taskMessage(t *testing.T, topic string, task kafka.Task) kafka.Message {
	t.Helper()
	value, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	return kafka.Message{Topic: topic, Key: task.Key(), Value: value}
}

func newTestWorker(st Store, g Guard, m Machine, d csp.Driver, p Producer) *Worker {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.RetryMax = 0
	cfg.BillingAccountName = "billing-account-1"
	return New(st, g, m, d, p, testWorkerLogger(), cfg, nil)
}

func TestPortfolioTaskAdvancesMachine(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{ID: "p1", Name: "Test"}
	guard := &fakeGuard{}
	machine := &fakeMachine{}
	producer := &fakeProducer{}

	w := newTestWorker(st, guard, machine, csp.NewMockDriver(), producer)
	h := w.handle(kafka.TopicPortfolios, w.processPortfolio)

	err := h(context.Background(), taskMessage(t, kafka.TopicPortfolios,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", Attempt: 1}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if machine.calls != 1 {
		t.Fatalf("machine called %d times, want 1", machine.calls)
	}
	if len(guard.released) != 1 || guard.released[0] != "p1" {
		t.Fatalf("claim not released: %v", guard.released)
	}
}

func TestPortfolioTaskSkipsWhenClaimLost(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{ID: "p1"}
	guard := &fakeGuard{denyPortfolio: true}
	machine := &fakeMachine{}

	w := newTestWorker(st, guard, machine, csp.NewMockDriver(), &fakeProducer{})
	h := w.handle(kafka.TopicPortfolios, w.processPortfolio)

	if err := h(context.Background(), taskMessage(t, kafka.TopicPortfolios,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", Attempt: 1})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if machine.calls != 0 {
		t.Fatal("machine must not run without the claim")
	}
	if len(st.failures) != 0 {
		t.Fatal("losing a claim is not a job failure")
	}
}

func TestTransientFailureReEnqueuesWithIncrementedAttempt(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{ID: "p1"}
	machine := &fakeMachine{err: csp.NewError(csp.KindConnection, "create_tenant", "timeout", nil)}
	producer := &fakeProducer{}

	w := newTestWorker(st, &fakeGuard{}, machine, csp.NewMockDriver(), producer)
	h := w.handle(kafka.TopicPortfolios, w.processPortfolio)

	if err := h(context.Background(), taskMessage(t, kafka.TopicPortfolios,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", Attempt: 1})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(producer.tasks) != 1 {
		t.Fatalf("expected 1 re-enqueued task, got %d", len(producer.tasks))
	}
	if producer.tasks[0].Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", producer.tasks[0].Attempt)
	}
	if producer.topics[0] != kafka.TopicPortfolios {
		t.Fatalf("re-enqueued to %s", producer.topics[0])
	}
	if len(st.failures) != 0 {
		t.Fatal("transient failure with retries left must not record a job failure")
	}
}

func TestExhaustedRetriesRecordJobFailure(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{ID: "p1"}
	machine := &fakeMachine{err: csp.NewError(csp.KindConnection, "create_tenant", "timeout", nil)}
	producer := &fakeProducer{}

	w := newTestWorker(st, &fakeGuard{}, machine, csp.NewMockDriver(), producer)
	h := w.handle(kafka.TopicPortfolios, w.processPortfolio)

	// Attempt 3 of 3: no retry budget left.
	if err := h(context.Background(), taskMessage(t, kafka.TopicPortfolios,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", Attempt: 3})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(producer.tasks) != 0 {
		t.Fatal("exhausted task must not be re-enqueued")
	}
	if len(st.failures) != 1 {
		t.Fatalf("expected 1 job failure, got %d", len(st.failures))
	}
	f := st.failures[0]
	if f.EntityKind != models.EntityKindPortfolio || f.EntityID != "p1" || f.TaskID != "t1" {
		t.Fatalf("job failure = %+v", f)
	}
}

func TestPermanentFailureRecordsJobFailureImmediately(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{ID: "p1"}
	machine := &fakeMachine{err: csp.NewError(csp.KindAuthentication, "create_tenant", "bad credentials", nil)}
	producer := &fakeProducer{}

	w := newTestWorker(st, &fakeGuard{}, machine, csp.NewMockDriver(), producer)
	h := w.handle(kafka.TopicPortfolios, w.processPortfolio)

	if err := h(context.Background(), taskMessage(t, kafka.TopicPortfolios,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", Attempt: 1})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(producer.tasks) != 0 {
		t.Fatal("permanent failure must not be retried")
	}
	if len(st.failures) != 1 {
		t.Fatalf("expected 1 job failure, got %d", len(st.failures))
	}
}

func TestPoisonMessageGoesToDLQ(t *testing.T) {
	producer := &fakeProducer{}
	w := newTestWorker(newFakeWorkerStore(), &fakeGuard{}, &fakeMachine{}, csp.NewMockDriver(), producer)
	h := w.handle(kafka.TopicPortfolios, w.processPortfolio)

	if err := h(context.Background(), kafka.Message{Topic: kafka.TopicPortfolios, Value: []byte("not json")}); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(producer.topics) != 1 || producer.topics[0] != kafka.TopicDLQ {
		t.Fatalf("expected DLQ publish, got %v", producer.topics)
	}
}

func TestApplicationTaskProvisionsAndStoresCloudID(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{
		ID: "p1",
		CSPData: models.JSONB{
			"tenant_id":                   "tenant-1",
			"initial_management_group_id": "mg-root",
		},
	}
	st.apps["a1"] = &models.Application{ID: "a1", PortfolioID: "p1", Name: "App One"}

	driver := csp.NewMockDriver()
	w := newTestWorker(st, &fakeGuard{}, &fakeMachine{}, driver, &fakeProducer{})
	h := w.handle(kafka.TopicApplications, w.processApplication)

	if err := h(context.Background(), taskMessage(t, kafka.TopicApplications,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", ApplicationID: "a1", Attempt: 1})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if st.appCloudIDs["a1"] == "" {
		t.Fatal("application cloud_id not recorded")
	}
	if driver.Calls("create_application") != 1 {
		t.Fatalf("driver called %d times, want 1", driver.Calls("create_application"))
	}
}

func TestApplicationTaskIsIdempotent(t *testing.T) {
	st := newFakeWorkerStore()
	cloudID := "mg-existing"
	st.portfolios["p1"] = &models.Portfolio{ID: "p1", CSPData: models.JSONB{"tenant_id": "tenant-1"}}
	st.apps["a1"] = &models.Application{ID: "a1", PortfolioID: "p1", Name: "App One", CloudID: &cloudID}

	driver := csp.NewMockDriver()
	w := newTestWorker(st, &fakeGuard{}, &fakeMachine{}, driver, &fakeProducer{})
	h := w.handle(kafka.TopicApplications, w.processApplication)

	if err := h(context.Background(), taskMessage(t, kafka.TopicApplications,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", ApplicationID: "a1", Attempt: 1})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if driver.Calls("create_application") != 0 {
		t.Fatal("already-provisioned application must not hit the driver")
	}
}

func TestRoleTaskCreatesOneUserAndPerEnvironmentAssignments(t *testing.T) {
	st := newFakeWorkerStore()
	st.portfolios["p1"] = &models.Portfolio{ID: "p1", CSPData: models.JSONB{"tenant_id": "tenant-1"}}
	st.users["u1"] = &models.User{ID: "u1", Email: "user@example.mil", DisplayName: "User", IsActive: true}
	env1 := "mg-env1"
	env2 := "mg-env2"
	st.envs["e1"] = &models.Environment{ID: "e1", ApplicationID: "a1", CloudID: &env1}
	st.envs["e2"] = &models.Environment{ID: "e2", ApplicationID: "a1", CloudID: &env2}
	st.roles["r1"] = &models.EnvironmentRole{ID: "r1", EnvironmentID: "e1", UserID: "u1", Role: "admin", Status: models.RoleStatusActive}
	st.roles["r2"] = &models.EnvironmentRole{ID: "r2", EnvironmentID: "e2", UserID: "u1", Role: "viewer", Status: models.RoleStatusActive}

	driver := csp.NewMockDriver()
	w := newTestWorker(st, &fakeGuard{}, &fakeMachine{}, driver, &fakeProducer{})
	h := w.handle(kafka.TopicRoles, w.processRoles)

	if err := h(context.Background(), taskMessage(t, kafka.TopicRoles,
		kafka.Task{TaskID: "t1", PortfolioID: "p1", UserID: "u1", EnvironmentRoleIDs: []string{"r1", "r2"}, Attempt: 1})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if driver.Calls("create_user") != 1 {
		t.Fatalf("create_user called %d times, want 1", driver.Calls("create_user"))
	}
	if driver.Calls("create_user_role") != 2 {
		t.Fatalf("create_user_role called %d times, want 2", driver.Calls("create_user_role"))
	}
	if st.roleCloudIDs["r1"] == "" || st.roleCloudIDs["r2"] == "" {
		t.Fatalf("role cloud ids not recorded: %v", st.roleCloudIDs)
	}
}
