package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// dbCmd inspects the profile database directly. Read-only; safe to run
// against a live server since the db is in WAL mode.
func dbCmd(args []string) {
	if len(args) >= 1 {
		switch args[0] {
		case "profiles":
			dbProfilesCmd(args[1:])
			return
		case "navs":
			dbNavsCmd(args[1:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin db profiles|navs ...")
	os.Exit(2)
}

func openDB(dataDir string) *sql.DB {
	path := filepath.Join(dataDir, "profiles.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func dbProfilesCmd(args []string) {
	fs := flag.NewFlagSet("db profiles", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	db := openDB(*dataDir)
	defer db.Close()

	rows, err := db.Query(`SELECT identity, completed_json, current_quest, updated_at FROM profiles ORDER BY identity`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var identity, completed, quest, updated string
		if err := rows.Scan(&identity, &completed, &quest, &updated); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("%s\tquest=%s\tcompleted=%s\tupdated=%s\n", identity, quest, completed, updated)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func dbNavsCmd(args []string) {
	fs := flag.NewFlagSet("db navs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	identity := fs.String("identity", "", "filter by identity (optional)")
	limit := fs.Int("limit", 50, "max rows")
	_ = fs.Parse(args)

	db := openDB(*dataDir)
	defer db.Close()

	q := `SELECT tick, session_id, identity, portal, destination, cause, recorded_at
		FROM navigations`
	var qargs []any
	if *identity != "" {
		q += ` WHERE identity = ?`
		qargs = append(qargs, *identity)
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	qargs = append(qargs, *limit)

	rows, err := db.Query(q, qargs...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var tick int64
		var session, id, portal, dest, cause, at string
		if err := rows.Scan(&tick, &session, &id, &portal, &dest, &cause, &at); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("tick=%d\t%s\t%s\t%s->%s\tcause=%s\t%s\n", tick, session, id, portal, dest, cause, at)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}
