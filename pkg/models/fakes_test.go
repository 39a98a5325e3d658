package models

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/catto/models/pkg/datastore"
	"github.com/catto/models/pkg/executor"
	"github.com/catto/models/pkg/scm"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

// fakeStore is an in-memory datastore recording every call.
type fakeStore struct {
	mu     sync.Mutex
	tables map[string]map[string]datastore.Row
	order  map[string][]string

	gets    []datastore.GetQuery
	scans   []datastore.ScanQuery
	updates []datastore.UpdateQuery
	creates []datastore.CreateQuery

	updateErr error
	createErr error
	scanErr   error
}

var _ datastore.Datastore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: make(map[string]map[string]datastore.Row),
		order:  make(map[string][]string),
	}
}

// put seeds a row without recording a create.
func (s *fakeStore) put(table, id string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := datastore.Row(maps.Clone(data))
	row["id"] = id

	if s.tables[table] == nil {
		s.tables[table] = make(map[string]datastore.Row)
	}

	if _, ok := s.tables[table][id]; !ok {
		s.order[table] = append(s.order[table], id)
	}

	s.tables[table][id] = row
}

func (s *fakeStore) Start(context.Context) error { return nil }
func (s *fakeStore) Stop() error                 { return nil }

func (s *fakeStore) Get(_ context.Context, q datastore.GetQuery) (datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets = append(s.gets, q)

	row, ok := s.tables[q.Table][q.ID]
	if !ok {
		return nil, datastore.ErrNotFound
	}

	return maps.Clone(row), nil
}

func (s *fakeStore) Scan(_ context.Context, q datastore.ScanQuery) ([]datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans = append(s.scans, q)

	if s.scanErr != nil {
		return nil, s.scanErr
	}

	var rows []datastore.Row

	for _, id := range s.order[q.Table] {
		row := s.tables[q.Table][id]

		match := true

		for k, v := range q.Params {
			if row[k] != v {
				match = false

				break
			}
		}

		if match {
			rows = append(rows, maps.Clone(row))
		}
	}

	return rows, nil
}

func (s *fakeStore) Update(_ context.Context, q datastore.UpdateQuery) (datastore.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, q)

	if s.updateErr != nil {
		return nil, s.updateErr
	}

	row, ok := s.tables[q.Table][q.ID]
	if !ok {
		return nil, datastore.ErrNotFound
	}

	maps.Copy(row, q.Data)

	return maps.Clone(row), nil
}

func (s *fakeStore) Create(_ context.Context, q datastore.CreateQuery) (datastore.Row, error) {
	s.mu.Lock()
	s.creates = append(s.creates, q)
	createErr := s.createErr
	s.mu.Unlock()

	if createErr != nil {
		return nil, createErr
	}

	s.put(q.Table, q.ID, q.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.tables[q.Table][q.ID]), nil
}

// stubSCM returns a fixed sha and records the lookups it served.
type stubSCM struct {
	mu    sync.Mutex
	sha   string
	err   error
	calls []scm.CommitConfig
}

var _ scm.SCM = (*stubSCM)(nil)

func (s *stubSCM) GetCommitSha(_ context.Context, cfg *scm.CommitConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, *cfg)

	return s.sha, s.err
}

// stubExecutor records started and stopped builds.
type stubExecutor struct {
	mu      sync.Mutex
	err     error
	started []executor.StartConfig
	stopped []string
}

var _ executor.Executor = (*stubExecutor)(nil)

func (e *stubExecutor) Start(_ context.Context, cfg *executor.StartConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.started = append(e.started, *cfg)

	return e.err
}

func (e *stubExecutor) Stop(_ context.Context, buildID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = append(e.stopped, buildID)

	return nil
}

// prefixSealer "seals" by prefixing the plaintext.
type prefixSealer struct{}

const sealedPrefix = "sealed:"

var errNotSealed = errors.New("not sealed")

func (prefixSealer) Seal(plain string) (string, error) {
	return sealedPrefix + plain, nil
}

func (prefixSealer) Unseal(sealed string) (string, error) {
	plain, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", errNotSealed
	}

	return plain, nil
}
