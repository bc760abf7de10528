package service

import (
	"context"
	"errors"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/database"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/storage"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/opentracker-es/opentracker-api/internal/worker"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type (
	fakeTool struct {
		mu         sync.Mutex
		content    string
		dumpErr    error
		restoreErr error
		dumps      int
		restored   []string
		// dumpErrAfter fails every dump after the first n succeeded, -1 disables it
		dumpErrAfter int
	}

	memStorage struct {
		mu          sync.Mutex
		objects     map[string][]byte
		uploadErr   error
		downloadErr error
		deleteErr   error
		corrupt     bool
	}
)

func newFakeTool() *fakeTool {
	return &fakeTool{content: "archive-bytes", dumpErrAfter: -1}
}

func (f *fakeTool) Dump(_ context.Context, archivePath string) (backup.DumpStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dumpErr != nil {
		return backup.DumpStats{}, f.dumpErr
	}
	if f.dumpErrAfter >= 0 && f.dumps >= f.dumpErrAfter {
		return backup.DumpStats{}, &backup.ToolExecutionError{Tool: "mongodump", ExitCode: 1, Stderr: "disk full"}
	}
	f.dumps++
	if err := os.WriteFile(archivePath, []byte(f.content), 0o600); err != nil {
		return backup.DumpStats{}, err
	}
	return backup.DumpStats{Collections: 3, Documents: 120}, nil
}

func (f *fakeTool) Restore(_ context.Context, archivePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, err := os.ReadFile(archivePath)
	if err != nil {
		return err
	}
	f.restored = append(f.restored, string(content))
	return f.restoreErr
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Type() types.StorageType {
	return types.StorageTypeS3
}

func (m *memStorage) Upload(_ context.Context, localFile, remotePath string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	content, err := os.ReadFile(localFile)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[remotePath] = content
	return nil
}

func (m *memStorage) Download(_ context.Context, remotePath, localFile string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.mu.Lock()
	content, ok := m.objects[remotePath]
	m.mu.Unlock()
	if !ok {
		return &storage.Error{Op: "download", Kind: storage.KindNotFound, Err: os.ErrNotExist}
	}
	if m.corrupt {
		content = append([]byte("x"), content...)
	}
	return os.WriteFile(localFile, content, 0o600)
}

func (m *memStorage) Delete(_ context.Context, remotePath string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, remotePath)
	return nil
}

func (m *memStorage) Exists(_ context.Context, remotePath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[remotePath]
	return ok, nil
}

func (m *memStorage) TestConnection(context.Context) (bool, string) {
	return true, "ok"
}

func (m *memStorage) GetDownloadURL(_ context.Context, remotePath string, _ time.Duration) (string, error) {
	return "https://s3.example.com/" + remotePath + "?signed", nil
}

func (m *memStorage) has(remotePath string) bool {
	ok, _ := m.Exists(context.Background(), remotePath)
	return ok
}

type testEnv struct {
	svc      *backupService
	tool     *fakeTool
	store    *memStorage
	backups  database.BackupRepository
	settings database.SettingsRepository
	enc      misc.Encryptor
	tempDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	enc, err := misc.NewEncryptor("test-secret")
	require.NoError(t, err)

	env := &testEnv{
		tool:     newFakeTool(),
		store:    newMemStorage(),
		backups:  database.NewBackupRepository(db),
		settings: database.NewSettingsRepository(db),
		enc:      enc,
		tempDir:  t.TempDir(),
	}
	env.svc = newBackupService(env.tool, env.backups, env.settings, enc, worker.New(2), env.tempDir)
	env.svc.newStorage = func(cfg *types.BackupConfig) (storage.Backend, error) {
		return env.store, nil
	}
	return env
}

func (e *testEnv) configure(t *testing.T, cfg *types.BackupConfig) {
	t.Helper()
	require.NoError(t, e.settings.SaveBackupConfig(context.Background(), cfg))
}

func s3Config() *types.BackupConfig {
	return &types.BackupConfig{
		Enabled:       true,
		RetentionDays: 30,
		StorageType:   types.StorageTypeS3,
		Schedule:      &types.Schedule{Frequency: types.FrequencyDaily, Time: "03:00"},
		S3Config:      &types.S3Config{EndpointURL: "https://s3.example.com", BucketName: "tracker"},
	}
}

// assertTempEmpty checks that no staging files survived an operation
func assertTempEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Empty(t, names, "temp dir should be empty")
}

var errUnreachable = errors.New("connection refused")
