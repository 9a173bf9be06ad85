package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	order_number TEXT NOT NULL,
	razorpay_order_id TEXT NOT NULL,
	razorpay_payment_id TEXT,
	status TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'primary',
	customer_name TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	customer_phone TEXT,
	product_id TEXT,
	product_name TEXT,
	subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
	shipping NUMERIC(12,2) NOT NULL DEFAULT 0,
	discount NUMERIC(12,2) NOT NULL DEFAULT 0,
	total NUMERIC(12,2) NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'INR',
	shipping_address JSONB,
	payment_method TEXT,
	failure_reason TEXT,
	coupons JSONB,
	coupon_results JSONB,
	paid_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- One order per provider order id: the fallback write path relies on this
-- to stay idempotent under concurrent webhook deliveries
CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_razorpay_order_id ON orders (razorpay_order_id);
CREATE INDEX IF NOT EXISTS ix_orders_created_at_id ON orders (created_at, id);

CREATE TABLE IF NOT EXISTS coupons (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'flat',
	value NUMERIC(12,2) NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	usage_count INTEGER NOT NULL DEFAULT 0,
	usage_limit INTEGER,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Codes are stored uppercased; uniqueness on the stored form keeps matching case-insensitive
CREATE UNIQUE INDEX IF NOT EXISTS ux_coupons_code ON coupons (code);

CREATE TABLE IF NOT EXISTS webhook_events (
	id UUID PRIMARY KEY,
	dedup_key TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB,
	signature_valid BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at TIMESTAMPTZ,
	processing_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_webhook_events_dedup_key ON webhook_events (dedup_key);
CREATE INDEX IF NOT EXISTS ix_webhook_events_created_at ON webhook_events (created_at);

CREATE SEQUENCE IF NOT EXISTS order_number_seq START 1000;
`

func main() {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "attral_orders")
	dbSSLMode := getEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)

	if dsnEnv := os.Getenv("DATABASE_URL"); dsnEnv != "" {
		dsn = dsnEnv
	}

	// First, connect to the postgres database to create the target database if needed
	postgresDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=%s",
		dbUser, dbPassword, dbHost, dbPort, dbSSLMode)

	postgresDB, err := sql.Open("postgres", postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to postgres database: %v\n", err)
		os.Exit(1)
	}
	defer postgresDB.Close()

	var exists bool
	err = postgresDB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName,
	).Scan(&exists)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check database existence: %v\n", err)
		os.Exit(1)
	}

	if !exists {
		fmt.Printf("Database '%s' does not exist. Creating...\n", dbName)
		if _, err := postgresDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create database: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Database '%s' created successfully.\n", dbName)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Schema applied successfully.")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
