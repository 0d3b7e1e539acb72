package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mikoczy/crm-scenarios-module/internal/api"
	"github.com/mikoczy/crm-scenarios-module/internal/dispatcher"
	"github.com/mikoczy/crm-scenarios-module/internal/domain"
	"github.com/mikoczy/crm-scenarios-module/internal/handler"
	"github.com/mikoczy/crm-scenarios-module/internal/reconciler"
	"github.com/mikoczy/crm-scenarios-module/internal/worker"
)

// AnalyticsSink receives job state transitions after they commit.
type AnalyticsSink interface {
	Record(ctx context.Context, owner domain.Owner, state domain.JobState, at time.Time)
}

// Store implements the scenario registry, the job state machine and the
// stats aggregator on PostgreSQL. Job writes and their stats counter
// bumps share one transaction.
type Store struct {
	db        *sql.DB
	analytics AnalyticsSink // optional, nil = disabled
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithAnalytics attaches a post-commit transition sink.
func (s *Store) WithAnalytics(sink AnalyticsSink) *Store {
	s.analytics = sink
	return s
}

// JobPatch is a partial update of a job. Nil fields are left unchanged.
// StartedAt and FinishedAt are set-at-most-once: a patch value is
// ignored when the column is already set.
type JobPatch struct {
	Parameters map[string]any
	Context    map[string]any
	State      *domain.JobState
	RetryCount *int
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// AddTrigger creates a job owned by the given trigger, in state created.
func (s *Store) AddTrigger(ctx context.Context, triggerID uuid.UUID, params, jobContext map[string]any) (domain.Job, error) {
	return s.addJob(ctx, domain.TriggerOwner(triggerID), params, jobContext)
}

// AddElement creates a job owned by the given element, in state created.
func (s *Store) AddElement(ctx context.Context, elementID uuid.UUID, params, jobContext map[string]any) (domain.Job, error) {
	return s.addJob(ctx, domain.ElementOwner(elementID), params, jobContext)
}

func (s *Store) addJob(ctx context.Context, owner domain.Owner, params, jobContext map[string]any) (domain.Job, error) {
	now := time.Now().UTC()
	job := domain.Job{
		ID:         uuid.New(),
		Owner:      owner,
		Parameters: params,
		Context:    jobContext,
		State:      domain.JobStateCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	paramsJSON, err := marshalJSONMap(params)
	if err != nil {
		return domain.Job{}, fmt.Errorf("marshal parameters: %w", err)
	}
	contextJSON, err := marshalJSONMap(jobContext)
	if err != nil {
		return domain.Job{}, fmt.Errorf("marshal context: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, queryInsertJob,
		job.ID,
		ownerColumn(owner, domain.OwnerKindTrigger),
		ownerColumn(owner, domain.OwnerKindElement),
		paramsJSON,
		contextJSON,
		string(job.State),
		job.RetryCount,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}

	if err := bumpStats(ctx, tx, owner, job.State); err != nil {
		return domain.Job{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}

	if s.analytics != nil {
		s.analytics.Record(ctx, owner, job.State, now)
	}
	return job, nil
}

// Update applies patch to the job row and returns the fresh snapshot.
//
// The stats counter for (owner, patch state) is bumped, in the same
// transaction, exactly when the patch state differs from the state of
// the snapshot the caller passed in. Callers that thread returned
// snapshots therefore never double-count; a caller replaying a
// transition against a stale snapshot counts it again.
func (s *Store) Update(ctx context.Context, job domain.Job, patch JobPatch) (domain.Job, error) {
	now := time.Now().UTC()

	params := job.Parameters
	if patch.Parameters != nil {
		params = patch.Parameters
	}
	jobContext := job.Context
	if patch.Context != nil {
		jobContext = patch.Context
	}
	state := job.State
	if patch.State != nil {
		state = *patch.State
	}
	retryCount := job.RetryCount
	if patch.RetryCount != nil {
		retryCount = *patch.RetryCount
	}

	paramsJSON, err := marshalJSONMap(params)
	if err != nil {
		return domain.Job{}, fmt.Errorf("marshal parameters: %w", err)
	}
	contextJSON, err := marshalJSONMap(jobContext)
	if err != nil {
		return domain.Job{}, fmt.Errorf("marshal context: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, queryUpdateJob,
		job.ID,
		paramsJSON,
		contextJSON,
		string(state),
		retryCount,
		nullableTime(patch.StartedAt),
		nullableTime(patch.FinishedAt),
		now,
	)
	updated, err := scanJob(row)
	if err != nil {
		return domain.Job{}, err
	}

	stateChanged := patch.State != nil && *patch.State != job.State
	if stateChanged {
		if err := bumpStats(ctx, tx, updated.Owner, *patch.State); err != nil {
			return domain.Job{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}

	if stateChanged && s.analytics != nil {
		s.analytics.Record(ctx, updated.Owner, *patch.State, now)
	}
	return updated, nil
}

// ScheduleJob marks the job claimed for execution.
func (s *Store) ScheduleJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	state := domain.JobStateScheduled
	return s.Update(ctx, job, JobPatch{State: &state})
}

// StartJob marks execution begun and stamps started_at.
func (s *Store) StartJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	state := domain.JobStateStarted
	now := time.Now().UTC()
	return s.Update(ctx, job, JobPatch{State: &state, StartedAt: &now})
}

// FinishJob marks the job successfully completed and stamps finished_at.
func (s *Store) FinishJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	state := domain.JobStateFinished
	now := time.Now().UTC()
	return s.Update(ctx, job, JobPatch{State: &state, FinishedAt: &now})
}

// FailJob marks the job failed and stamps finished_at.
func (s *Store) FailJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	state := domain.JobStateFailed
	now := time.Now().UTC()
	return s.Update(ctx, job, JobPatch{State: &state, FinishedAt: &now})
}

// IncrementRetry bumps retry_count atomically in SQL. No state change,
// no stats bump.
func (s *Store) IncrementRetry(ctx context.Context, jobID uuid.UUID) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, queryIncrementRetry, jobID, time.Now().UTC())
	return scanJob(row)
}

// GetJobByID returns a job by its ID.
func (s *Store) GetJobByID(ctx context.Context, jobID uuid.UUID) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, queryGetJobByID, jobID)
	return scanJob(row)
}

// JobsByState returns jobs in the given state, oldest first.
func (s *Store) JobsByState(ctx context.Context, state domain.JobState, limit, offset int) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, queryJobsByState, string(state), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// CountJobsByState returns the job count per state. States with no jobs
// are present with a zero count.
func (s *Store) CountJobsByState(ctx context.Context) (map[domain.JobState]int, error) {
	rows, err := s.db.QueryContext(ctx, queryCountJobsByState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.JobState]int, len(domain.AllJobStates()))
	for _, state := range domain.AllJobStates() {
		counts[state] = 0
	}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[domain.JobState(state)] = count
	}
	return counts, rows.Err()
}

// CountStaleStarted counts jobs stuck in started with started_at older
// than the threshold.
func (s *Store) CountStaleStarted(ctx context.Context, olderThan time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, queryCountStaleStarted, olderThan).Scan(&count)
	return count, err
}

// StatsCount returns the aggregated transition counter for one owner
// and state. Missing rows read as zero.
func (s *Store) StatsCount(ctx context.Context, owner domain.Owner, state domain.JobState) (int64, error) {
	query := queryTriggerStatsCount
	if owner.Kind() == domain.OwnerKindElement {
		query = queryElementStatsCount
	}
	var count int64
	err := s.db.QueryRowContext(ctx, query, owner.ID(), string(state)).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// EnabledTriggersByEvent returns the triggers bound to event whose
// scenario is enabled.
func (s *Store) EnabledTriggersByEvent(ctx context.Context, event string) ([]domain.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, queryEnabledTriggersByEvent, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Trigger
	for rows.Next() {
		var t domain.Trigger
		if err := rows.Scan(&t.ID, &t.ScenarioID, &t.Name, &t.Event); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// ListScenarios returns scenarios, newest first, paginated.
func (s *Store) ListScenarios(ctx context.Context, limit, offset int) ([]domain.Scenario, error) {
	rows, err := s.db.QueryContext(ctx, queryListScenarios, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Scenario
	for rows.Next() {
		var sc domain.Scenario
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Enabled, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

// SetScenarioEnabled flips a scenario's enabled flag. Returns
// sql.ErrNoRows when the scenario does not exist.
func (s *Store) SetScenarioEnabled(ctx context.Context, scenarioID uuid.UUID, enabled bool) error {
	var id uuid.UUID
	return s.db.QueryRowContext(ctx, querySetScenarioEnabled, scenarioID, enabled, time.Now().UTC()).Scan(&id)
}

// SubscriptionByID returns a subscription. Returns sql.ErrNoRows when
// absent, as the handler contract requires.
func (s *Store) SubscriptionByID(ctx context.Context, id int64) (domain.Subscription, error) {
	var sub domain.Subscription
	err := s.db.QueryRowContext(ctx, querySubscriptionByID, id).Scan(&sub.ID, &sub.UserID)
	return sub, err
}

// SubscriptionPayment returns the latest payment of a subscription.
func (s *Store) SubscriptionPayment(ctx context.Context, subscriptionID int64) (domain.Payment, error) {
	var p domain.Payment
	err := s.db.QueryRowContext(ctx, querySubscriptionPayment, subscriptionID).Scan(&p.ID, &p.SubscriptionID)
	return p, err
}

func bumpStats(ctx context.Context, tx *sql.Tx, owner domain.Owner, state domain.JobState) error {
	query := queryUpsertTriggerStats
	if owner.Kind() == domain.OwnerKindElement {
		query = queryUpsertElementStats
	}
	_, err := tx.ExecContext(ctx, query, owner.ID(), string(state))
	return err
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.Job, error) {
	var (
		job         domain.Job
		triggerID   uuid.NullUUID
		elementID   uuid.NullUUID
		paramsJSON  []byte
		contextJSON []byte
		state       string
		startedAt   sql.NullTime
		finishedAt  sql.NullTime
	)
	err := row.Scan(
		&job.ID,
		&triggerID,
		&elementID,
		&paramsJSON,
		&contextJSON,
		&state,
		&job.RetryCount,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}

	switch {
	case triggerID.Valid:
		job.Owner = domain.TriggerOwner(triggerID.UUID)
	case elementID.Valid:
		job.Owner = domain.ElementOwner(elementID.UUID)
	default:
		return domain.Job{}, fmt.Errorf("job %s has no owner", job.ID)
	}

	job.State = domain.JobState(state)
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if job.Parameters, err = unmarshalJSONMap(paramsJSON); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if job.Context, err = unmarshalJSONMap(contextJSON); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal context: %w", err)
	}
	return job, nil
}

// ownerColumn returns the owner id for the column of the given kind,
// NULL otherwise.
func ownerColumn(owner domain.Owner, kind domain.OwnerKind) any {
	if owner.Kind() == kind {
		return owner.ID()
	}
	return nil
}

// marshalJSONMap keeps empty maps as SQL NULL.
func marshalJSONMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Compile-time interface assertions
var (
	_ dispatcher.Registry          = (*Store)(nil)
	_ dispatcher.JobCreator        = (*Store)(nil)
	_ handler.SubscriptionResolver = (*Store)(nil)
	_ worker.Store                 = (*Store)(nil)
	_ reconciler.Store             = (*Store)(nil)
	_ api.Store                    = (*Store)(nil)
)
