package journal

// Schema creates every table the journal needs. Times are Unix nanoseconds
// in UTC; money and volumes are decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	occurred_at INTEGER NOT NULL,
	status TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL DEFAULT '',
	tax TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger_entries(user_id, occurred_at);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	portfolio_id TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume TEXT NOT NULL,
	open_time INTEGER NOT NULL,
	open_price TEXT NOT NULL,
	close_time INTEGER,
	close_price TEXT,
	current_price TEXT NOT NULL,
	purchase_value TEXT NOT NULL,
	commission TEXT NOT NULL,
	swap TEXT NOT NULL,
	taxes TEXT NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	gross_pl TEXT NOT NULL,
	net_pl TEXT NOT NULL,
	stop_loss TEXT,
	take_profit TEXT,
	comment TEXT NOT NULL DEFAULT '',
	source_order_id TEXT NOT NULL DEFAULT '',
	deleted_at INTEGER,
	delete_reason TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_user_status ON positions(user_id, status);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	portfolio_id TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	side TEXT NOT NULL,
	volume TEXT NOT NULL,
	original_volume TEXT NOT NULL,
	price TEXT NOT NULL,
	stop_price TEXT NOT NULL,
	purchase_value TEXT NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	expiry_time INTEGER,
	comment TEXT NOT NULL DEFAULT '',
	execution TEXT,
	cancelled_at INTEGER,
	cancel_reason TEXT NOT NULL DEFAULT '',
	expired_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status);
CREATE INDEX IF NOT EXISTS idx_orders_expiry ON orders(status, expiry_time);
`
