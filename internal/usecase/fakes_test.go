package usecase

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/mdump/internal/domain"
	"go.uber.org/zap"
)

var testLogger = zap.NewNop().Sugar()

// fakeServer keeps a set of databases and records every statement issued.
type fakeServer struct {
	databases  map[string]string // name -> loaded content
	ops        []string
	failCreate map[string]bool
	failDrop   map[string]bool
}

func newFakeServer(names ...string) *fakeServer {
	s := &fakeServer{
		databases:  make(map[string]string),
		failCreate: make(map[string]bool),
		failDrop:   make(map[string]bool),
	}
	for _, n := range names {
		s.databases[n] = "original " + n
	}
	return s
}

func (s *fakeServer) Ping(context.Context) error { return nil }

func (s *fakeServer) ListDatabases(context.Context) ([]string, error) {
	names := []string{"information_schema", "mysql"}
	for n := range s.databases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeServer) DatabaseSize(context.Context, string) (int64, error) { return 0, nil }

func (s *fakeServer) CreateDatabase(_ context.Context, name string, ifNotExists bool) error {
	if ifNotExists {
		s.ops = append(s.ops, "create-if-not-exists "+name)
	} else {
		s.ops = append(s.ops, "create "+name)
	}
	if s.failCreate[name] {
		return fmt.Errorf("create %s refused", name)
	}
	if _, ok := s.databases[name]; ok && !ifNotExists {
		return fmt.Errorf("database %s exists", name)
	}
	if _, ok := s.databases[name]; !ok {
		s.databases[name] = ""
	}
	return nil
}

func (s *fakeServer) DropDatabase(_ context.Context, name string) error {
	s.ops = append(s.ops, "drop "+name)
	if s.failDrop[name] {
		return fmt.Errorf("drop %s refused", name)
	}
	delete(s.databases, name)
	return nil
}

func (s *fakeServer) Close() error { return nil }

func (s *fakeServer) names() []string {
	var names []string
	for n := range s.databases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// fakeLoader copies the dump content into the fake server.
type fakeLoader struct {
	server *fakeServer
	loaded []string
	fail   map[string]bool
	onLoad func(database string)
}

func (l *fakeLoader) Load(_ context.Context, database, sqlPath string) error {
	l.loaded = append(l.loaded, database)
	if l.onLoad != nil {
		l.onLoad(database)
	}
	if l.fail[database] {
		return &domain.ExitError{Tool: "mysql", Status: 1, Err: fmt.Errorf("exit status 1")}
	}
	content, err := os.ReadFile(sqlPath)
	if err != nil {
		return err
	}
	l.server.databases[database] = string(content)
	return nil
}

// fakeDumper writes the server content of a database, or fails for names in
// fail.
type fakeDumper struct {
	server *fakeServer
	dumped []string
	fail   map[string]bool
}

func (d *fakeDumper) Dump(_ context.Context, database, outputPath string) error {
	d.dumped = append(d.dumped, database)
	if d.fail[database] {
		_ = os.WriteFile(outputPath, []byte("partial"), 0644)
		return &domain.ExitError{Tool: "mysqldump", Status: 2, Err: fmt.Errorf("exit status 2")}
	}
	content := "-- dump of " + database
	if d.server != nil {
		content = d.server.databases[database]
	}
	return os.WriteFile(outputPath, []byte(content), 0644)
}

// scriptedPrompter answers from a queue of decisions and confirmations.
type scriptedPrompter struct {
	decisions     []domain.Decision
	confirmations []bool
	asked         []string
	confirmed     []string
}

func (p *scriptedPrompter) ChooseDisposition(database string) (domain.Decision, error) {
	p.asked = append(p.asked, database)
	if len(p.decisions) == 0 {
		return 0, fmt.Errorf("unexpected prompt for %s", database)
	}
	d := p.decisions[0]
	p.decisions = p.decisions[1:]
	return d, nil
}

func (p *scriptedPrompter) ConfirmOverwrite(database string) (bool, error) {
	p.confirmed = append(p.confirmed, database)
	if len(p.confirmations) == 0 {
		return true, nil
	}
	c := p.confirmations[0]
	p.confirmations = p.confirmations[1:]
	return c, nil
}

// stubArchiver extracts a fixed set of files and metadata.
type stubArchiver struct {
	files map[string]string
	meta  *domain.ArchiveMetadata
	err   error
}

func (a *stubArchiver) Pack(string, []domain.ArchiveFile, *domain.ArchiveMetadata) error {
	return fmt.Errorf("not implemented")
}

func (a *stubArchiver) Unpack(_ string, destDir string) (*domain.ArchiveMetadata, error) {
	if a.err != nil {
		return nil, a.err
	}
	for name, content := range a.files {
		path := destDir + string(os.PathSeparator) + name
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, err
		}
	}
	return a.meta, nil
}

type recordingReporter struct {
	started  []string
	finished []string
}

func (r *recordingReporter) Start(database, _ string) { r.started = append(r.started, database) }

func (r *recordingReporter) Finish(database string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	r.finished = append(r.finished, database+":"+status)
}

// memoryStorage records uploads and serves a fixed listing.
type memoryStorage struct {
	mu       sync.Mutex
	files    map[string]time.Time
	uploaded []string
	deleted  []string
	failList bool
	failOld  bool
	failPut  bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string]time.Time)}
}

func (s *memoryStorage) Upload(_ context.Context, localPath, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return fmt.Errorf("upload refused")
	}
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	s.uploaded = append(s.uploaded, remoteName)
	s.files[remoteName] = time.Now()
	return nil
}

func (s *memoryStorage) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, fmt.Errorf("list refused")
	}
	var names []string
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memoryStorage) Delete(_ context.Context, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, remoteName)
	delete(s.files, remoteName)
	return nil
}

func (s *memoryStorage) GetOldFiles(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOld {
		return nil, fmt.Errorf("not supported")
	}
	var names []string
	for n, mod := range s.files {
		if mod.Before(cutoff) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}
