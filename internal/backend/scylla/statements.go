package scylla

// Schéma du keyspace storefront. Les montants sont en texte décimal.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id text PRIMARY KEY,
		name text,
		slug text,
		description text,
		price text,
		image_urls list<text>,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id uuid PRIMARY KEY,
		email text,
		username text,
		password text,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS users_by_email (
		email text PRIMARY KEY,
		user_id uuid
	)`,
	`CREATE TABLE IF NOT EXISTS order_line_items (
		draft_id uuid,
		line_id uuid,
		product_id text,
		quantity int,
		price text,
		created_at timestamp,
		PRIMARY KEY (draft_id, line_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id uuid PRIMARY KEY,
		draft_id uuid,
		user_id uuid,
		email text,
		line_ids list<uuid>,
		total_price text,
		status text,
		created_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS orders_by_user (
		user_id uuid,
		created_at timestamp,
		order_id uuid,
		total_price text,
		status text,
		PRIMARY KEY (user_id, created_at, order_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, order_id ASC)`,
}

const (
	stmtProductsByIDs = `SELECT product_id, name, slug, description, price, image_urls, created_at, updated_at
		FROM products WHERE product_id IN ?`
	stmtInsertProduct = `INSERT INTO products (product_id, name, slug, description, price, image_urls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmtGetUserByEmail     = "SELECT user_id FROM users_by_email WHERE email = ?"
	stmtReserveEmail       = "INSERT INTO users_by_email (email, user_id) VALUES (?, ?) IF NOT EXISTS"
	stmtReleaseEmail       = "DELETE FROM users_by_email WHERE email = ? IF user_id = ?"
	stmtGetUserByID        = "SELECT email, username, password, created_at, updated_at FROM users WHERE user_id = ?"
	stmtInsertUser         = "INSERT INTO users (user_id, email, username, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	stmtUpdateUserPassword = "UPDATE users SET password = ?, updated_at = ? WHERE user_id = ?"

	stmtInsertLineItem   = "INSERT INTO order_line_items (draft_id, line_id, product_id, quantity, price, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	stmtLineItemsByDraft = "SELECT line_id, product_id, quantity, price, created_at FROM order_line_items WHERE draft_id = ?"
	stmtDeleteDraft      = "DELETE FROM order_line_items WHERE draft_id = ?"

	stmtInsertOrder = `INSERT INTO orders (order_id, draft_id, user_id, email, line_ids, total_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmtInsertOrderByUser = `INSERT INTO orders_by_user (user_id, created_at, order_id, total_price, status)
		VALUES (?, ?, ?, ?, ?)`
	stmtGetOrder = `SELECT draft_id, user_id, email, line_ids, total_price, status, created_at
		FROM orders WHERE order_id = ?`
	stmtOrdersByUser      = "SELECT order_id, total_price, status, created_at FROM orders_by_user WHERE user_id = ?"
	stmtUpdateOrderStatus = "UPDATE orders SET status = ? WHERE order_id = ?"
	stmtUpdateOrderByUser = "UPDATE orders_by_user SET status = ? WHERE user_id = ? AND created_at = ? AND order_id = ?"
)
