package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"voice-agent-service/internal/observability/metrics"
)

// Store persists synthesized response audio under a single directory so
// the HTTP layer can serve it back by filename.
type Store struct {
	dir     string
	metrics *metrics.Metrics
}

// NewStore creates the audio directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Store{dir: dir, metrics: metrics.DefaultMetrics}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a generated name and returns the filename.
func (s *Store) Save(data []byte, ext string) (string, error) {
	name := fmt.Sprintf("response_%s.%s", uuid.NewString(), strings.TrimPrefix(ext, "."))
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	s.metrics.RecordAudioFileWritten()
	return name, nil
}

// Path resolves a stored filename to its on-disk path. Names containing
// path separators or traversal elements are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid audio filename %q", name)
	}
	p := filepath.Join(s.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("audio file %q: %w", name, err)
	}
	return p, nil
}
