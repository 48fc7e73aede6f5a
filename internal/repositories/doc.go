// Package repositories implements durable client storage for the authorization flow.
//
// Key Implementations:
//   - [SQLiteStorage] : key/value records in the client_storage table, shared by every process using the same file
//   - [MemoryStorage] : process-local storage for tests and --ephemeral runs
//   - [AuthEventRepository] : append-only log of lifecycle transitions
//
// Both storages satisfy the auth package's Storage contract. SetIfAbsent is atomic in both:
// INSERT OR IGNORE for SQLite, a mutex for memory. Remove deletes every key in one transaction.
package repositories
