package storage

import (
	"context"
	"fmt"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const writeProbe = ".write_test"

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: filepath.Clean(basePath)}
}

func (l *LocalStorage) Type() types.StorageType {
	return types.StorageTypeLocal
}

// FullPath resolves remotePath under the base directory, rejecting paths that escape it
func (l *LocalStorage) FullPath(remotePath string) (string, error) {
	full := filepath.Join(l.basePath, filepath.Clean("/"+remotePath))
	rel, err := filepath.Rel(l.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", newError("resolve", KindPermission, fmt.Errorf("path %q escapes %s", remotePath, l.basePath))
	}
	return full, nil
}

func (l *LocalStorage) Upload(_ context.Context, localFile, remotePath string) error {
	dst, err := l.FullPath(remotePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return classifyLocal("upload", err)
	}
	return classifyLocal("upload", copyFile(localFile, dst))
}

func (l *LocalStorage) Download(_ context.Context, remotePath, localFile string) error {
	src, err := l.FullPath(remotePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(localFile), 0o755); err != nil {
		return classifyLocal("download", err)
	}
	return classifyLocal("download", copyFile(src, localFile))
}

// Delete removes the file and prunes parent directories left empty, stopping at the base path
func (l *LocalStorage) Delete(_ context.Context, remotePath string) error {
	full, err := l.FullPath(remotePath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return classifyLocal("delete", err)
	}

	for dir := filepath.Dir(full); dir != l.basePath && strings.HasPrefix(dir, l.basePath); dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

func (l *LocalStorage) Exists(_ context.Context, remotePath string) (bool, error) {
	full, err := l.FullPath(remotePath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, classifyLocal("exists", err)
	}
	return true, nil
}

func (l *LocalStorage) TestConnection(ctx context.Context) (bool, string) {
	if err := os.MkdirAll(l.basePath, 0o755); err != nil {
		return false, fmt.Sprintf("Cannot create directory %s: %v", l.basePath, err)
	}

	probe := filepath.Join(l.basePath, writeProbe)
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		if os.IsPermission(err) {
			return false, fmt.Sprintf("Permission denied: cannot write to %s", l.basePath)
		}
		return false, fmt.Sprintf("Cannot write to %s: %v", l.basePath, err)
	}
	_ = os.Remove(probe)

	usage, err := disk.UsageWithContext(ctx, l.basePath)
	if err != nil {
		return true, fmt.Sprintf("Local storage accessible at %s", l.basePath)
	}
	freeGB := float64(usage.Free) / (1024 * 1024 * 1024)
	return true, fmt.Sprintf("Local storage accessible. Free space: %.2f GB", freeGB)
}

func (l *LocalStorage) GetDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func classifyLocal(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case os.IsNotExist(err):
		return newError(op, KindNotFound, err)
	case os.IsPermission(err):
		return newError(op, KindPermission, err)
	default:
		return newError(op, KindUnknown, errors.WithStack(err))
	}
}
