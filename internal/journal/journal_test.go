package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samwightt/rubberdux/internal/ir"
)

func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenAppliesPragmas(t *testing.T) {
	j := createTestJournal(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "2",
	} {
		got, err := j.pragma(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestOpenMigratesVersionOneJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO runs (id, spec_hash, engine_version, ir_version) VALUES ('old', 'h', '0.0.1', '1')`)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	info, err := j.Run(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, info.InitialState)

	version, err := j.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j1, err := Open(path)
	require.NoError(t, err)
	_, err = j1.BeginRun(context.Background(), "r1", "h", "")
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	runs, err := j2.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestRunRecordsEntriesInSeqOrder(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)

	run, err := j.BeginRun(ctx, "r1", "spec-hash", "")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID())

	require.NoError(t, run.RecordEvent(1, ir.NewEvent("early", nil), false))
	require.NoError(t, run.RecordEvent(2, ir.NewEvent("login", ir.O("user", ir.IRString("ada"))), true))
	require.NoError(t, run.RecordAction(3, "ready", ir.NewAction("ready", ir.O("user", ir.IRString("ada")))))

	entries, err := j.Entries(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{
		Seq:  1,
		Kind: KindEvent,
		ID:   ir.MustEventID(ir.NewEvent("early", nil), 1),
		Name: "early",
	}, entries[0])

	assert.Equal(t, KindEvent, entries[1].Kind)
	assert.True(t, entries[1].Delivered)
	assert.Equal(t, ir.O("user", ir.IRString("ada")), entries[1].Value)

	assert.Equal(t, KindAction, entries[2].Kind)
	assert.Equal(t, "ready", entries[2].Pipe)
	assert.Equal(t, "ready", entries[2].Name)
	assert.Equal(t, ir.MustActionID("ready", ir.NewAction("ready", ir.O("user", ir.IRString("ada"))), 3), entries[2].ID)
}

func TestRunNullContentRoundTrips(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	run, err := j.BeginRun(ctx, "r1", "h", "")
	require.NoError(t, err)

	require.NoError(t, run.RecordEvent(1, ir.NewEvent("tick", ir.IRNull{}), true))

	events, err := j.Events(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []ir.Event{ir.NewEvent("tick", ir.IRNull{})}, events)
}

func TestRunDuplicateSeqFails(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	run, err := j.BeginRun(ctx, "r1", "h", "")
	require.NoError(t, err)

	require.NoError(t, run.RecordEvent(1, ir.NewEvent("a", nil), true))
	assert.Error(t, run.RecordEvent(1, ir.NewEvent("b", nil), true))
}

func TestEntriesEmptyRun(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	_, err := j.BeginRun(ctx, "r1", "h", "")
	require.NoError(t, err)

	entries, err := j.Entries(ctx, "r1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestRunLookup(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)

	_, err := j.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = j.BeginRun(ctx, "r1", "h", "")
	require.NoError(t, err)
	_, err = j.BeginRun(ctx, "r2", "h", "")
	require.NoError(t, err)
	_, err = j.BeginRun(ctx, "r3", "h", "r1")
	require.NoError(t, err)

	latest, err := j.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)

	replay, err := j.Run(ctx, "r3")
	require.NoError(t, err)
	assert.Equal(t, "r1", replay.ReplayOf)
	assert.Equal(t, ir.EngineVersion, replay.EngineVersion)

	_, err = j.Run(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReplayOfUnknownRunFails(t *testing.T) {
	j := createTestJournal(t)

	_, err := j.BeginRun(context.Background(), "r1", "h", "missing")
	assert.Error(t, err)
}

func TestRunInitialState(t *testing.T) {
	ctx := context.Background()
	j := createTestJournal(t)
	run, err := j.BeginRun(ctx, "r1", "h", "")
	require.NoError(t, err)

	info, err := j.Run(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, info.InitialState)

	state := ir.O("user", ir.IRNull{}, "count", ir.IRInt(0))
	require.NoError(t, run.SetInitialState(state))

	info, err = j.Run(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, state, info.InitialState)
}
