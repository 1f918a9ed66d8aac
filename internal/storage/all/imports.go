// Package all wires all built-in sinks into the storage registry.
//
// It exists purely for side effects: importing it runs the init functions
// that register the relational sink with its dialects and the lake sink.
//
//	relational  postgres, sqlite, mssql, mysql
//	lake        Parquet objects on S3-compatible storage
//
// A binary that needs only a subset can import the backend packages
// directly instead.
package all

import (
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/lake"
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/mssql"
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/mysql"
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/postgres"
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/relational"
	_ "github.com/YogovAI/Product-Development-Yogov/internal/storage/sqlite"
)
