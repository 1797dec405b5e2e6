package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/db/migrate"
)

const helpText = `Usage: dbmigrate [sqlite3|pgx] [dsn]`

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, helpText)
		os.Exit(1)
	}

	var driver db.Driver
	err := driver.UnmarshalText([]byte(os.Args[1]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n%s\n", err, helpText)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()

	conn, err := db.Open(ctx, driver, os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}

	migrations, err := migrate.Up(ctx, conn, driver)
	_ = conn.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	for _, migration := range migrations {
		fmt.Printf("%d: %s\n", migration.Version, migration.Filename)
	}
}
