package memory

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	embedding  BLOB
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT,
	created_at      TEXT NOT NULL,
	embedding       BLOB
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS tasks (
	id                  TEXT PRIMARY KEY,
	task_type           TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	created_at          TEXT NOT NULL,
	completed_at        TEXT,
	result              TEXT,
	performance_metrics TEXT
);

CREATE TABLE IF NOT EXISTS model_performance (
	id               TEXT PRIMARY KEY,
	model_name       TEXT NOT NULL,
	request_time     TEXT NOT NULL,
	response_time_ms INTEGER NOT NULL,
	token_count      INTEGER NOT NULL,
	compute_cost     REAL NOT NULL,
	task_type        TEXT NOT NULL DEFAULT '',
	outcome          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_model_perf_model_ts ON model_performance(model_name, request_time);
`
