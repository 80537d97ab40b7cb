package postgres

const queryInsertOutcome = `
INSERT INTO invocation_outcomes (
	id, correlation_id, device_id, module_id,
	kind, status_code, error, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const queryInsertObservation = `
INSERT INTO observations (
	id, correlation_id, observed_at, body_bytes
) VALUES ($1, $2, $3, $4)`
