package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/pitchroom/dealflow/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createDealTable(db)
	if err != nil {
		return nil, err
	}
	err = createExclusivityTable(db)
	if err != nil {
		return nil, err
	}
	err = createWaitlistTable(db)
	if err != nil {
		return nil, err
	}
	err = createProductionTable(db)
	if err != nil {
		return nil, err
	}
	err = createPitchOwnershipTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createDealTable creates a PostgreSQL table for the ProductionDeal struct
func createDealTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS production_deals (
			id SERIAL PRIMARY KEY,
			deal_id TEXT NOT NULL UNIQUE,
			workflow_instance_id TEXT NOT NULL,
			production_company_id TEXT NOT NULL,
			production_company_user_id TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			pitch_id TEXT NOT NULL,
			interest_type TEXT NOT NULL,
			message TEXT,
			proposed_budget NUMERIC,
			proposed_timeline TEXT,
			nda_id TEXT,
			status TEXT NOT NULL,
			awaiting_event TEXT,
			stage_deadline TIMESTAMP,
			follow_up_count INT NOT NULL DEFAULT 0,
			exclusivity_expires_at TIMESTAMP,
			proposal_document_key TEXT,
			terms JSONB,
			counter_terms JSONB,
			contract_document_key TEXT,
			signed_at TIMESTAMP,
			activated_at TIMESTAMP,
			completed_at TIMESTAMP,
			reason TEXT,
			outcome_code TEXT,
			meta_data JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating production_deals table: %v", err)
	}
	return err
}

// createExclusivityTable creates the single-row-per-pitch exclusivity window table.
// The primary key on pitch_id is what makes the conditional upsert in
// AcquireExclusivity a safe compare-and-swap.
func createExclusivityTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS exclusivity_windows (
			pitch_id TEXT PRIMARY KEY,
			deal_id TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		log.Printf("Error creating exclusivity_windows table: %v", err)
	}
	return err
}

// createWaitlistTable creates the FIFO waitlist table for deals queued
// behind a pitch's exclusivity window.
func createWaitlistTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS waitlist_entries (
			id SERIAL PRIMARY KEY,
			pitch_id TEXT NOT NULL,
			deal_id TEXT NOT NULL,
			enqueued_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (pitch_id, deal_id)
		)
	`)
	if err != nil {
		log.Printf("Error creating waitlist_entries table: %v", err)
	}
	return err
}

// createProductionTable creates the production tracking table populated on deal activation.
func createProductionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS productions (
			id SERIAL PRIMARY KEY,
			production_id TEXT NOT NULL UNIQUE,
			deal_id TEXT NOT NULL UNIQUE REFERENCES production_deals(deal_id),
			pitch_id TEXT NOT NULL,
			production_company_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating productions table: %v", err)
	}
	return err
}

// createPitchOwnershipTable creates the ownership record updated when a contract executes.
func createPitchOwnershipTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pitch_ownership (
			pitch_id TEXT PRIMARY KEY,
			deal_id TEXT NOT NULL,
			production_company_id TEXT NOT NULL,
			acquired_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating pitch_ownership table: %v", err)
	}
	return err
}
