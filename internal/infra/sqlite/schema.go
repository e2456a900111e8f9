package sqlite

// Migrations returns the schema statements, one per string.
// Every statement is idempotent so Open can apply them on each start.
//
// There are no ON DELETE CASCADE clauses: removing history rows is always an
// explicit step of the operation that needs it.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			name               TEXT NOT NULL UNIQUE,
			account_type       TEXT NOT NULL CHECK (account_type IN ('cash', 'investing', 'debt')),
			current_balance    TEXT NOT NULL DEFAULT '0',
			associated_methods TEXT NOT NULL DEFAULT '[]',
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(account_type)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id  TEXT UNIQUE,
			name         TEXT NOT NULL DEFAULT 'N/A',
			amount       TEXT NOT NULL DEFAULT '0',
			date         TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT 'N/A',
			sub_category TEXT NOT NULL,
			method       TEXT NOT NULL DEFAULT 'N/A',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category)`,

		`CREATE TABLE IF NOT EXISTS income (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id   TEXT UNIQUE,
			name          TEXT NOT NULL DEFAULT 'N/A',
			amount        TEXT NOT NULL DEFAULT '0',
			date_received TEXT NOT NULL,
			account       TEXT NOT NULL DEFAULT 'Checking Account',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_income_date ON income(date_received)`,
		`CREATE INDEX IF NOT EXISTS idx_income_account ON income(account)`,

		`CREATE TABLE IF NOT EXISTS account_history (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id             INTEGER NOT NULL REFERENCES accounts(id),
			previous_balance       TEXT NOT NULL,
			amount_changed         TEXT NOT NULL,
			new_balance            TEXT NOT NULL,
			change_type            TEXT NOT NULL,
			related_transaction_id INTEGER REFERENCES transactions(id),
			related_income_id      INTEGER REFERENCES income(id),
			description            TEXT,
			created_at             TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_account ON account_history(account_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_transaction ON account_history(related_transaction_id) WHERE related_transaction_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_history_income ON account_history(related_income_id) WHERE related_income_id IS NOT NULL`,
	}
}
