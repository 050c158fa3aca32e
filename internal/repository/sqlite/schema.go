package sqlite

// Schema mirrors migrations/0001_init.sql for SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'ASSOCIATE' CHECK (role IN ('ASSOCIATE', 'MANAGER')),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tickets (
	id TEXT PRIMARY KEY,
	ticket_number TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (severity IN ('EASY', 'LOW', 'MEDIUM', 'HIGH', 'VERY_HIGH')),
	status TEXT NOT NULL DEFAULT 'DRAFT' CHECK (status IN ('DRAFT', 'REVIEW', 'PENDING', 'OPEN', 'CLOSED')),
	assigned_to_id TEXT,
	created_by_id TEXT NOT NULL,
	due_date DATE,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	deleted_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_tickets_created_by ON tickets(created_by_id);

CREATE TABLE IF NOT EXISTS ticket_history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	ticket_id TEXT NOT NULL REFERENCES tickets(id),
	action_type TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	reason TEXT NOT NULL DEFAULT '',
	changed_by TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket ON ticket_history(ticket_id, created_at);
`
