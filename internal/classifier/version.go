package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/phototag/internal/database"
)

// retrainedVersionLayout is YYYYMMDDHHMMSS in UTC
const retrainedVersionLayout = "20060102150405"

// ReadRetrainedVersion returns the version of the last index build in dir as
// an integer YYYYMMDDHHMMSS, or 0 when no index has been built.
func ReadRetrainedVersion(dir string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(dir, database.RetrainedVersionFile)) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read retrained version: %w", err)
	}

	s := strings.TrimSpace(string(data))
	t, err := time.Parse(retrainedVersionLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse retrained version %q: %w", s, err)
	}
	v, err := strconv.ParseInt(t.Format(retrainedVersionLayout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse retrained version %q: %w", s, err)
	}
	return v, nil
}

// WriteRetrainedVersion records at as the retrained version in dir.
func WriteRetrainedVersion(dir string, at time.Time) (int64, error) {
	s := at.UTC().Format(retrainedVersionLayout)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}

	path := filepath.Join(dir, database.RetrainedVersionFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(s+"\n"), 0o600); err != nil {
		return 0, fmt.Errorf("write retrained version: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write retrained version: %w", err)
	}
	return v, nil
}
