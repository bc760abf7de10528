package backup

import (
	"bytes"
	"context"
	"github.com/opentracker-es/opentracker-api/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

const maxStderr = 2048

var (
	doneDumpingRe = regexp.MustCompile(`done dumping (\S+)`)
	documentsRe   = regexp.MustCompile(`\((\d+) documents?\)`)
)

type (
	MongoConfig struct {
		URI      string
		Database string

		// DumpBinary and RestoreBinary default to the tools on PATH
		DumpBinary    string
		RestoreBinary string
	}

	MongoTool struct {
		cfg MongoConfig
	}
)

func NewMongo(cfg MongoConfig) *MongoTool {
	if cfg.DumpBinary == "" {
		cfg.DumpBinary = "mongodump"
	}
	if cfg.RestoreBinary == "" {
		cfg.RestoreBinary = "mongorestore"
	}
	return &MongoTool{cfg: cfg}
}

func (m *MongoTool) Dump(ctx context.Context, archivePath string) (DumpStats, error) {
	logger.Info("starting mongo dump",
		zap.String("database", m.cfg.Database),
		zap.String("archive", archivePath))

	output, err := m.run(ctx, m.cfg.DumpBinary,
		"--uri="+m.cfg.URI,
		"--db="+m.cfg.Database,
		"--gzip",
		"--archive="+archivePath)
	if err != nil {
		return DumpStats{}, err
	}

	stats := ParseDumpStats(output)
	logger.Info("mongo dump completed",
		zap.Int("collections", stats.Collections),
		zap.Int("documents", stats.Documents))
	return stats, nil
}

func (m *MongoTool) Restore(ctx context.Context, archivePath string) error {
	logger.Info("starting mongo restore",
		zap.String("database", m.cfg.Database),
		zap.String("archive", archivePath))

	_, err := m.run(ctx, m.cfg.RestoreBinary,
		"--uri="+m.cfg.URI,
		"--db="+m.cfg.Database,
		"--gzip",
		"--archive="+archivePath,
		"--drop")
	return err
}

// run executes the binary and returns its combined output. The database tools log
// progress to stderr, so both streams are kept for parsing.
func (m *MongoTool) run(ctx context.Context, binary string, args ...string) (string, error) {
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ToolExecutionError{
				Tool:     binary,
				ExitCode: exitErr.ExitCode(),
				Stderr:   tail(stderr.String(), maxStderr),
			}
		}
		return "", errors.Wrapf(err, "failed to run %s", binary)
	}

	return out.String() + stderr.String(), nil
}

// ParseDumpStats counts dumped collections and sums the document counts reported by mongodump
func ParseDumpStats(output string) DumpStats {
	stats := DumpStats{}
	for _, line := range strings.Split(output, "\n") {
		if !doneDumpingRe.MatchString(line) {
			continue
		}

		stats.Collections++
		if m := documentsRe.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				stats.Documents += n
			}
		}
	}
	return stats
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
