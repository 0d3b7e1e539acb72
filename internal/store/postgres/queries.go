package postgres

const queryInsertJob = `
INSERT INTO scenarios_jobs (id, trigger_id, element_id, parameters, context, state, retry_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const queryGetJobByID = `
SELECT id, trigger_id, element_id, parameters, context, state, retry_count,
       created_at, updated_at, started_at, finished_at
FROM scenarios_jobs
WHERE id = $1
`

const queryUpdateJob = `
UPDATE scenarios_jobs
SET parameters = $2,
    context = $3,
    state = $4,
    retry_count = $5,
    started_at = COALESCE(started_at, $6),
    finished_at = COALESCE(finished_at, $7),
    updated_at = $8
WHERE id = $1
RETURNING id, trigger_id, element_id, parameters, context, state, retry_count,
          created_at, updated_at, started_at, finished_at
`

const queryIncrementRetry = `
UPDATE scenarios_jobs
SET retry_count = retry_count + 1,
    updated_at = $2
WHERE id = $1
RETURNING id, trigger_id, element_id, parameters, context, state, retry_count,
          created_at, updated_at, started_at, finished_at
`

const queryJobsByState = `
SELECT id, trigger_id, element_id, parameters, context, state, retry_count,
       created_at, updated_at, started_at, finished_at
FROM scenarios_jobs
WHERE state = $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3
`

const queryCountJobsByState = `
SELECT state, COUNT(*) FROM scenarios_jobs GROUP BY state
`

const queryCountStaleStarted = `
SELECT COUNT(*) FROM scenarios_jobs
WHERE state = 'started' AND started_at < $1
`

const queryUpsertTriggerStats = `
INSERT INTO trigger_stats (trigger_id, state, count)
VALUES ($1, $2, 1)
ON CONFLICT (trigger_id, state) DO UPDATE SET count = trigger_stats.count + 1
`

const queryUpsertElementStats = `
INSERT INTO element_stats (element_id, state, count)
VALUES ($1, $2, 1)
ON CONFLICT (element_id, state) DO UPDATE SET count = element_stats.count + 1
`

const queryTriggerStatsCount = `
SELECT count FROM trigger_stats WHERE trigger_id = $1 AND state = $2
`

const queryElementStatsCount = `
SELECT count FROM element_stats WHERE element_id = $1 AND state = $2
`

const queryEnabledTriggersByEvent = `
SELECT t.id, t.scenario_id, t.name, t.event
FROM triggers t
JOIN scenarios s ON t.scenario_id = s.id
WHERE t.event = $1 AND s.enabled = true
ORDER BY t.id
`

const queryListScenarios = `
SELECT id, name, enabled, created_at, updated_at
FROM scenarios
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

const querySetScenarioEnabled = `
UPDATE scenarios
SET enabled = $2, updated_at = $3
WHERE id = $1
RETURNING id
`

const querySubscriptionByID = `
SELECT id, user_id FROM subscriptions WHERE id = $1
`

const querySubscriptionPayment = `
SELECT id, subscription_id FROM payments
WHERE subscription_id = $1
ORDER BY id DESC
LIMIT 1
`
