package database

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// InitDB opens the Postgres connection and bootstraps the schema. The handle
// is created once in main and injected everywhere; nothing else in the
// process opens connections.
func InitDB(logger *zap.Logger) (*sqlx.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	dbname := getEnv("DB_NAME", "shopdb")

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sqlx.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	phone VARCHAR(50) NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	state VARCHAR(100) NOT NULL DEFAULT '',
	country VARCHAR(100) NOT NULL DEFAULT '',
	role VARCHAR(20) NOT NULL DEFAULT 'user',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS categories (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS products (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	short_description VARCHAR(200) NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	unit VARCHAR(50) NOT NULL DEFAULT 'pcs',
	variations TEXT[] NOT NULL DEFAULT '{}',
	status VARCHAR(20) NOT NULL DEFAULT 'active',
	category_id INTEGER REFERENCES categories(id),
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders (
	id SERIAL PRIMARY KEY,
	order_id VARCHAR(30) NOT NULL UNIQUE,
	user_id INTEGER REFERENCES users(id),
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	sub_total NUMERIC(12, 2) NOT NULL,
	shipping_fee NUMERIC(12, 2) NOT NULL,
	total_amount NUMERIC(12, 2) NOT NULL CHECK (total_amount >= 0),
	full_name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	phone VARCHAR(50) NOT NULL,
	address TEXT NOT NULL,
	state VARCHAR(100) NOT NULL,
	country VARCHAR(100) NOT NULL,
	payment_method VARCHAR(20) NOT NULL,
	payment_transaction_id VARCHAR(255),
	paid BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS order_items (
	id SERIAL PRIMARY KEY,
	order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id INTEGER NOT NULL REFERENCES products(id),
	product_name VARCHAR(255) NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity >= 1),
	price_at_purchase NUMERIC(12, 2) NOT NULL CHECK (price_at_purchase >= 0),
	variation VARCHAR(100)
);

CREATE TABLE IF NOT EXISTS store_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	banner TEXT NOT NULL DEFAULT '',
	logo TEXT NOT NULL DEFAULT '',
	facebook VARCHAR(255) NOT NULL DEFAULT '',
	twitter VARCHAR(255) NOT NULL DEFAULT '',
	instagram VARCHAR(255) NOT NULL DEFAULT '',
	linkedin VARCHAR(255) NOT NULL DEFAULT '',
	whatsapp VARCHAR(255) NOT NULL DEFAULT '',
	shipping_standard NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (shipping_standard >= 0),
	shipping_express NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (shipping_express >= 0),
	address TEXT NOT NULL DEFAULT '',
	city VARCHAR(100) NOT NULL DEFAULT '',
	state VARCHAR(100) NOT NULL DEFAULT '',
	country VARCHAR(100) NOT NULL DEFAULT '',
	zip_code VARCHAR(20) NOT NULL DEFAULT '',
	phone VARCHAR(50) NOT NULL DEFAULT '',
	email VARCHAR(255) NOT NULL,
	business_id VARCHAR(100) NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pending_purchases (
	id SERIAL PRIMARY KEY,
	tx_ref VARCHAR(64) NOT NULL UNIQUE,
	order_data JSONB NOT NULL,
	amount NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (amount >= 0),
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	gateway_ref VARCHAR(255),
	order_id VARCHAR(30),
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
