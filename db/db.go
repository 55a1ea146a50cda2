// Package db opens the runs database for the building-review binary and
// mounts the admin debugging surface over it.
package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	storage "github.com/ardoise-data/building.review/internal/building/storage/sqlite"
)

// DB bundles the runs database with its repositories.
type DB struct {
	*storage.Store

	Runs       *storage.RunStore
	Trials     *storage.TrialStore
	Thresholds *storage.ThresholdStore
	Reports    *storage.ReportStore

	path string
}

// Open opens the runs database and applies migrations. When migrationsDir
// is empty the embedded migration set is used.
func Open(path, migrationsDir string) (*DB, error) {
	store, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	if migrationsDir != "" {
		err = store.MigrateDir(migrationsDir)
	} else {
		err = store.Migrate()
	}
	if err != nil {
		store.Close()
		return nil, err
	}

	return &DB{
		Store:      store,
		Runs:       storage.NewRunStore(store.DB),
		Trials:     storage.NewTrialStore(store.DB),
		Thresholds: storage.NewThresholdStore(store.DB),
		Reports:    storage.NewReportStore(store.DB),
		path:       path,
	}, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", db.path), db.Store.DB, &tailsql.DBOptions{
		Label: "Runs DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the runs database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.Store.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		// Send the backup file to the client
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		// Copy the backup file content to the gzip writer
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
