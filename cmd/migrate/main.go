package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"phishguard/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

func main() {
	dbPath := flag.String("db", "./phishguard.db", "Path to the database file")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		logrus.Fatalf("Database file not found: %s", *dbPath)
	}

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	applied, err := migrations.Applied(ctx, db)
	if err != nil {
		logrus.Fatalf("Failed to check migration status: %v", err)
	}
	fmt.Printf("%d migration(s) already applied\n", len(applied))

	ran, err := migrations.Apply(ctx, db)
	for _, version := range ran {
		fmt.Printf("Applied migration %d\n", version)
	}
	if err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}

	if len(ran) == 0 {
		fmt.Println("Schema is up to date, nothing to apply")
		return
	}
	fmt.Println("Database schema updated. You can now restart PhishGuard.")
}
