package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the YYYYMMDD_HHMMSS stamp shared by every file of one run.
const TimestampLayout = "20060102_150405"

var timestampSuffix = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})$`)

func extractTimestamp(filename string) (time.Time, error) {
	name := strings.TrimSuffix(filename, ArchiveExt)
	name = strings.TrimSuffix(name, DumpExt)

	matches := timestampSuffix.FindStringSubmatch(name)
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}

	return time.ParseInLocation(TimestampLayout, matches[2], time.Local)
}

// InferDatabaseName derives a database name from a dump file name: the .sql
// extension and an optional trailing _YYYYMMDD_HHMMSS stamp are removed.
// A name that itself ends in something shaped like a stamp is mis-parsed;
// archive metadata takes precedence wherever it exists.
func InferDatabaseName(filename string) string {
	name := strings.TrimSuffix(filename, DumpExt)

	matches := timestampSuffix.FindStringSubmatch(name)
	if matches == nil {
		return name
	}
	if _, err := time.Parse(TimestampLayout, matches[2]); err != nil {
		return name
	}
	return matches[1]
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func megabytes(size int64) float64 {
	return float64(size) / (1024 * 1024)
}
