package storage

import (
	"context"
	"fmt"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

const sftpDialTimeout = 30 * time.Second

type (
	SFTPConfig struct {
		Host       string
		Port       int
		Username   string
		Password   string
		RemotePath string
	}

	// connectFunc opens an sftp session. The returned closer tears down the whole
	// connection, including the underlying SSH client.
	connectFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

	// SFTPStorage opens a fresh SSH and SFTP session for every operation
	SFTPStorage struct {
		cfg     SFTPConfig
		connect connectFunc
	}

	multiCloser []io.Closer
)

func NewSFTPStorage(cfg SFTPConfig) *SFTPStorage {
	if cfg.Port == 0 {
		cfg.Port = types.DefaultSFTPPort
	}
	if cfg.RemotePath == "" {
		cfg.RemotePath = types.DefaultSFTPRemotePath
	}

	s := &SFTPStorage{cfg: cfg}
	s.connect = s.dial
	return s
}

func (s *SFTPStorage) Type() types.StorageType {
	return types.StorageTypeSFTP
}

func (s *SFTPStorage) dial(ctx context.Context) (*sftp.Client, io.Closer, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	config := &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(s.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // operators configure hosts by address only
		Timeout:         sftpDialTimeout,
	}

	dialer := net.Dialer{Timeout: sftpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(sftpDialTimeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, err
	}
	return client, multiCloser{client, sshClient}, nil
}

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// session runs fn with a connected client and always closes the connection afterwards
func (s *SFTPStorage) session(ctx context.Context, op string, fn func(client *sftp.Client) error) error {
	client, closer, err := s.connect(ctx)
	if err != nil {
		return classifySFTP(op, err)
	}
	defer closer.Close()

	if err := fn(client); err != nil {
		return classifySFTP(op, err)
	}
	return nil
}

func (s *SFTPStorage) fullPath(remotePath string) string {
	return path.Join(s.cfg.RemotePath, path.Clean("/"+remotePath))
}

func (s *SFTPStorage) Upload(ctx context.Context, localFile, remotePath string) error {
	target := s.fullPath(remotePath)
	return s.session(ctx, "upload", func(client *sftp.Client) error {
		if err := client.MkdirAll(path.Dir(target)); err != nil {
			return err
		}

		in, err := os.Open(localFile)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := client.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}

func (s *SFTPStorage) Download(ctx context.Context, remotePath, localFile string) error {
	source := s.fullPath(remotePath)
	return s.session(ctx, "download", func(client *sftp.Client) error {
		in, err := client.Open(source)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(localFile)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}

func (s *SFTPStorage) Delete(ctx context.Context, remotePath string) error {
	target := s.fullPath(remotePath)
	return s.session(ctx, "delete", func(client *sftp.Client) error {
		err := client.Remove(target)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	})
}

func (s *SFTPStorage) Exists(ctx context.Context, remotePath string) (bool, error) {
	target := s.fullPath(remotePath)
	exists := false
	err := s.session(ctx, "exists", func(client *sftp.Client) error {
		_, err := client.Stat(target)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

func (s *SFTPStorage) TestConnection(ctx context.Context) (bool, string) {
	created := false
	err := s.session(ctx, "test", func(client *sftp.Client) error {
		_, err := client.ReadDir(s.cfg.RemotePath)
		if errors.Is(err, os.ErrNotExist) {
			created = true
			return client.MkdirAll(s.cfg.RemotePath)
		}
		return err
	})
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			switch serr.Kind {
			case KindAuthentication:
				return false, "Authentication failed. Check username and password"
			case KindProtocol:
				return false, fmt.Sprintf("SSH error: %v", serr.Err)
			case KindPermission:
				return false, fmt.Sprintf("Permission denied on %s", s.cfg.RemotePath)
			}
		}
		return false, fmt.Sprintf("Connection failed: %v", err)
	}

	if created {
		return true, fmt.Sprintf("Connection successful. Created directory %s", s.cfg.RemotePath)
	}
	return true, fmt.Sprintf("Connection successful. Directory %s is accessible", s.cfg.RemotePath)
}

// GetDownloadURL always returns "", archives on SFTP are streamed through the service
func (s *SFTPStorage) GetDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func classifySFTP(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"):
		return newError(op, KindAuthentication, err)
	case errors.Is(err, os.ErrNotExist):
		return newError(op, KindNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return newError(op, KindPermission, err)
	case strings.HasPrefix(msg, "ssh:"):
		return newError(op, KindProtocol, err)
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return newError(op, KindConnection, err)
		}
		return newError(op, KindUnknown, err)
	}
}
