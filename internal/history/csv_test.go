package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"research-agent/internal/config"
)

func newTestCSV(t *testing.T) *CSVStore {
	t.Helper()
	s := NewCSVStore(filepath.Join(t.TempDir(), "history.csv"))
	require.NoError(t, s.Init())
	return s
}

func TestCSV_AppendAndList(t *testing.T) {
	s := newTestCSV(t)

	require.NoError(t, s.Append(Record{UserID: "u1", Question: "q1", Answer: "a1"}))
	require.NoError(t, s.Append(Record{Question: "q2, with comma", Answer: "a2\nwith newline"}))

	recs, err := s.List(ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "q2, with comma", recs[0].Question)
	require.Equal(t, "a2\nwith newline", recs[0].Answer)
	require.Equal(t, "", recs[0].UserID)
	require.Equal(t, "q1", recs[1].Question)
	require.Equal(t, "u1", recs[1].UserID)
	require.False(t, recs[1].Timestamp.IsZero())
}

func TestCSV_InitIdempotent(t *testing.T) {
	s := newTestCSV(t)
	require.NoError(t, s.Append(Record{Question: "q", Answer: "a"}))
	require.NoError(t, s.Init())

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	// A second Init must not write a second header.
	require.Equal(t, 1, strings.Count(string(data), "timestamp,user_id,question,answer"))

	recs, err := s.List(ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestCSV_FilterAndLimit(t *testing.T) {
	s := newTestCSV(t)
	require.NoError(t, s.Append(Record{UserID: "u1", Question: "q1", Answer: "a1"}))
	require.NoError(t, s.Append(Record{UserID: "u2", Question: "q2", Answer: "a2"}))
	require.NoError(t, s.Append(Record{UserID: "u1", Question: "q3", Answer: "a3"}))

	recs, err := s.List(ListOptions{UserID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "q3", recs[0].Question)
}

func TestCSV_AppendRecreatesRemovedFile(t *testing.T) {
	s := newTestCSV(t)
	require.NoError(t, os.Remove(s.path))

	require.NoError(t, s.Append(Record{UserID: "u1", Question: "q", Answer: "a"}))

	recs, err := s.List(ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "q", recs[0].Question)
}

func TestCSV_LegacyThreeColumnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.csv")
	legacy := "timestamp,question,answer\n" +
		time.Now().Format(time.RFC3339) + ",old q,old a\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s := NewCSVStore(path)
	require.NoError(t, s.Init())
	require.NoError(t, s.Append(Record{UserID: "u1", Question: "new q", Answer: "new a"}))

	all, err := s.List(ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "old q", all[1].Question)
	require.Equal(t, "", all[1].UserID)

	u1, err := s.List(ListOptions{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, u1, 1)
}

func configFor(backend, path string) config.HistoryConfig {
	return config.HistoryConfig{Backend: backend, Path: path}
}

func TestOpen_DispatchesBackend(t *testing.T) {
	dir := t.TempDir()

	sqliteStore, err := Open(configFor("sqlite", filepath.Join(dir, "h.db")))
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, sqliteStore)

	csvStore, err := Open(configFor("csv", filepath.Join(dir, "h.csv")))
	require.NoError(t, err)
	require.IsType(t, &CSVStore{}, csvStore)

	_, err = Open(configFor("bogus", ""))
	require.Error(t, err)
}
