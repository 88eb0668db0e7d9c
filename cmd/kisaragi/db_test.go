package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/kisaragi/internal/db"
)

func sqliteConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeConfig(t, fmt.Sprintf(
		"stores:\n  driver: sqlite\n  conversations: %s\n  ranks: %s\n",
		filepath.Join(dir, "conversations.sqlite3"),
		filepath.Join(dir, "ranks.sqlite3"),
	))
}

func TestDBInit_CreatesStores(t *testing.T) {
	path := sqliteConfig(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Conversation store ready") {
		t.Errorf("output missing conversation store line: %s", out)
	}
	if !strings.Contains(out, "Rank store ready") {
		t.Errorf("output missing rank store line: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("output missing success line: %s", out)
	}
}

func TestDBInit_Idempotent(t *testing.T) {
	path := sqliteConfig(t)

	for i := 0; i < 2; i++ {
		cmd := newRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs([]string{"db", "init", "--config", path})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("db init run %d failed: %v", i+1, err)
		}
	}
}

func TestCloseStore_ReleasesHandle(t *testing.T) {
	handle, err := db.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	closeStore(handle, "test")

	sqlDB, err := handle.DB()
	if err != nil {
		t.Fatalf("underlying handle: %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Fatal("expected ping to fail on a closed store handle")
	}
}

func TestDBInit_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"db", "init", "--config", filepath.Join(os.TempDir(), "does-not-exist.yaml")})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
