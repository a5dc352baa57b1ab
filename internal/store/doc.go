// Package store provides SQLite-backed persistence for project content.
//
// A save writes a complete snapshot in one transaction:
//   - Entities: position, direction, stage bounds, base value and flags
//   - Stage diffs: ordered per-stage patches, removals included
//   - Circuit edges and cable edges, by stable entity ID
//
// Live world handles are never persisted.
//
// # Deterministic Output
//
//   - Values and patches are stored as RFC 8785 canonical JSON
//   - All reads use ORDER BY on primary keys as "col COLLATE BINARY ASC"
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
