package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
//
// Stage tables must stay in step with the schemas in internal/pipeline.
var migrations = [][]string{
	// Migration 1: stage tables
	{
		`CREATE TABLE consultations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			status TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			inflow_source TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			business_type TEXT NOT NULL DEFAULT '',
			consult_date TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			migrated_to_contract BOOLEAN NOT NULL DEFAULT FALSE,
			migrated_to_contract_at TEXT,
			created_by INTEGER NOT NULL DEFAULT 0,
			updated_by INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_consultations_status ON consultations(status, migrated_to_contract)`,

		`CREATE TABLE contracts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			consultation_id INTEGER REFERENCES consultations(id),
			status TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			inflow_source TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			business_type TEXT NOT NULL DEFAULT '',
			contract_date TEXT NOT NULL DEFAULT '',
			contract_amount TEXT NOT NULL DEFAULT '0',
			deposit_amount TEXT NOT NULL DEFAULT '0',
			monthly_fee TEXT NOT NULL DEFAULT '0',
			pre_installation BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT NOT NULL DEFAULT '',
			migrated_to_installation BOOLEAN NOT NULL DEFAULT FALSE,
			migrated_to_installation_at TEXT,
			created_by INTEGER NOT NULL DEFAULT 0,
			updated_by INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_contracts_lineage ON contracts(consultation_id)`,
		`CREATE INDEX idx_contracts_status ON contracts(status, migrated_to_installation)`,

		`CREATE TABLE installations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contract_id INTEGER REFERENCES contracts(id),
			status TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			inflow_source TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			install_address TEXT NOT NULL DEFAULT '',
			install_date TEXT NOT NULL DEFAULT '',
			contract_amount TEXT NOT NULL DEFAULT '0',
			contract_completed BOOLEAN NOT NULL DEFAULT FALSE,
			kiosk_count INTEGER NOT NULL DEFAULT 0,
			terminal_count INTEGER NOT NULL DEFAULT 0,
			camera_count INTEGER NOT NULL DEFAULT 0,
			door_lock_count INTEGER NOT NULL DEFAULT 0,
			sensor_count INTEGER NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			migrated_to_operation BOOLEAN NOT NULL DEFAULT FALSE,
			migrated_to_operation_at TEXT,
			created_by INTEGER NOT NULL DEFAULT 0,
			updated_by INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_installations_lineage ON installations(contract_id)`,
		`CREATE INDEX idx_installations_status ON installations(status, migrated_to_operation)`,

		`CREATE TABLE operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			installation_id INTEGER REFERENCES installations(id),
			status TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			install_address TEXT NOT NULL DEFAULT '',
			open_date TEXT NOT NULL DEFAULT '',
			kiosk_count INTEGER NOT NULL DEFAULT 0,
			terminal_count INTEGER NOT NULL DEFAULT 0,
			camera_count INTEGER NOT NULL DEFAULT 0,
			door_lock_count INTEGER NOT NULL DEFAULT 0,
			sensor_count INTEGER NOT NULL DEFAULT 0,
			contract_completed BOOLEAN NOT NULL DEFAULT FALSE,
			install_cert_received BOOLEAN NOT NULL DEFAULT FALSE,
			install_photo_received BOOLEAN NOT NULL DEFAULT FALSE,
			drive_uploaded BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT NOT NULL DEFAULT '',
			migrated_to_franchise BOOLEAN NOT NULL DEFAULT FALSE,
			migrated_to_franchise_at TEXT,
			created_by INTEGER NOT NULL DEFAULT 0,
			updated_by INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_operations_lineage ON operations(installation_id)`,
		`CREATE INDEX idx_operations_status ON operations(status, migrated_to_franchise)`,

		`CREATE TABLE franchises (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_id INTEGER REFERENCES operations(id),
			status TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			install_address TEXT NOT NULL DEFAULT '',
			open_date TEXT NOT NULL DEFAULT '',
			monthly_fee TEXT NOT NULL DEFAULT '0',
			notes TEXT NOT NULL DEFAULT '',
			created_by INTEGER NOT NULL DEFAULT 0,
			updated_by INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_franchises_lineage ON franchises(operation_id)`,
	},

	// Migration 2: migration run log
	{
		`CREATE TABLE migration_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_stage TEXT NOT NULL,
			target_stage TEXT NOT NULL,
			actor_id INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			items TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_migration_runs_target ON migration_runs(target_stage, created_at)`,
	},
}

// dataTables lists every data table in foreign-key-safe deletion order.
var dataTables = []string{
	"migration_runs",
	"franchises",
	"operations",
	"installations",
	"contracts",
	"consultations",
}
