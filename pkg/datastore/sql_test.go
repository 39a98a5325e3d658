package datastore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catto/models/pkg/config"
	"github.com/catto/models/pkg/datastore"
)

func setupTestStore(t *testing.T) datastore.Datastore {
	t.Helper()

	cfg := &config.DatastoreConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{
			Path: filepath.Join(t.TempDir(), "datastore.db"),
		},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s, err := datastore.New(log, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestSQL_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, datastore.CreateQuery{
		Table: "builds",
		ID:    "build-1",
		Data: map[string]any{
			"jobId":  "job-1",
			"number": int64(1474649580274),
			"steps":  []map[string]string{{"name": "sd-setup"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "build-1", created["id"])

	row, err := s.Get(ctx, datastore.GetQuery{Table: "builds", ID: "build-1"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", row["jobId"])
	assert.Equal(t, float64(1474649580274), row["number"])
	assert.Equal(t, []any{map[string]any{"name": "sd-setup"}}, row["steps"])
}

func TestSQL_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), datastore.GetQuery{Table: "jobs", ID: "nope"})
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestSQL_TablesAreIsolated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, datastore.CreateQuery{Table: "jobs", ID: "same", Data: map[string]any{"name": "main"}})
	require.NoError(t, err)

	_, err = s.Create(ctx, datastore.CreateQuery{Table: "users", ID: "same", Data: map[string]any{"username": "batman"}})
	require.NoError(t, err)

	row, err := s.Get(ctx, datastore.GetQuery{Table: "users", ID: "same"})
	require.NoError(t, err)
	assert.Equal(t, "batman", row["username"])

	_, err = s.Get(ctx, datastore.GetQuery{Table: "builds", ID: "same"})
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestSQL_CreateDuplicateFails(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	q := datastore.CreateQuery{Table: "users", ID: "u1", Data: map[string]any{"username": "batman"}}

	_, err := s.Create(ctx, q)
	require.NoError(t, err)

	_, err = s.Create(ctx, q)
	require.Error(t, err)
}

func TestSQL_UpdateMergesFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, datastore.CreateQuery{
		Table: "builds",
		ID:    "b1",
		Data:  map[string]any{"status": "QUEUED", "sha": "abc123"},
	})
	require.NoError(t, err)

	updated, err := s.Update(ctx, datastore.UpdateQuery{
		Table: "builds",
		ID:    "b1",
		Data:  map[string]any{"status": "RUNNING"},
	})
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", updated["status"])
	assert.Equal(t, "abc123", updated["sha"])

	row, err := s.Get(ctx, datastore.GetQuery{Table: "builds", ID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", row["status"])
	assert.Equal(t, "abc123", row["sha"])
}

func TestSQL_UpdateMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Update(context.Background(), datastore.UpdateQuery{
		Table: "builds",
		ID:    "ghost",
		Data:  map[string]any{"status": "RUNNING"},
	})
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestSQL_ScanFiltersAndPaginates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, jobID := range []string{"job-a", "job-b", "job-a", "job-a"} {
		_, err := s.Create(ctx, datastore.CreateQuery{
			Table: "builds",
			ID:    string(rune('a' + i)),
			Data:  map[string]any{"jobId": jobID, "number": int64(100 + i)},
		})
		require.NoError(t, err)
	}

	all, err := s.Scan(ctx, datastore.ScanQuery{
		Table:  "builds",
		Params: map[string]any{"jobId": "job-a"},
	})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byNumber, err := s.Scan(ctx, datastore.ScanQuery{
		Table:  "builds",
		Params: map[string]any{"number": int64(101)},
	})
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	assert.Equal(t, "job-b", byNumber[0]["jobId"])

	page, err := s.Scan(ctx, datastore.ScanQuery{
		Table:    "builds",
		Params:   map[string]any{"jobId": "job-a"},
		Paginate: datastore.Paginate{Page: 2, Count: 2},
	})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
