package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/mdump/internal/adapter/compressor"
	"github.com/semmidev/mdump/internal/adapter/database"
	"github.com/semmidev/mdump/internal/adapter/prompt"
	"github.com/semmidev/mdump/internal/adapter/storage"
	"github.com/semmidev/mdump/internal/config"
	"github.com/semmidev/mdump/internal/domain"
	"github.com/semmidev/mdump/internal/infrastructure/logger"
	"github.com/semmidev/mdump/internal/usecase"
)

// Tools runs the MySQL client programs.
type Tools interface {
	domain.Dumper
	domain.Loader
	Versions(ctx context.Context) (map[string]string, error)
}

type App struct {
	config        *config.Config
	logger        *logger.Logger
	terminal      *prompt.Terminal
	interactive   bool
	reporter      usecase.Reporter
	tools         Tools
	archiver      domain.Archiver
	server        domain.Server
	uploadTargets []usecase.UploadTarget
}

type Option func(*App)

func WithLogger(log *logger.Logger) Option {
	return func(a *App) { a.logger = log }
}

// WithTerminal replaces the standard streams. interactive decides whether
// the operator is asked for selections and decisions.
func WithTerminal(t *prompt.Terminal, interactive bool) Option {
	return func(a *App) {
		a.terminal = t
		a.interactive = interactive
	}
}

func WithReporter(r usecase.Reporter) Option {
	return func(a *App) { a.reporter = r }
}

func WithTools(t Tools) Option {
	return func(a *App) { a.tools = t }
}

// WithServer uses an already open server instead of connecting on demand.
func WithServer(s domain.Server) Option {
	return func(a *App) { a.server = s }
}

func WithUploadTargets(targets []usecase.UploadTarget) Option {
	return func(a *App) { a.uploadTargets = targets }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		log, err := logger.New(logger.Options{Level: cfg.App.LogLevel, File: cfg.App.LogFile})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = log
	}

	if a.terminal == nil {
		a.terminal = prompt.Stdio()
		a.interactive = prompt.IsInteractive()
	}
	if a.reporter == nil && a.interactive {
		a.reporter = prompt.NewSpinner(os.Stderr)
	}

	if a.tools == nil {
		a.tools = database.NewMySQL(cfg.MySQL)
	}

	archiver, err := compressor.NewTarGzLevel(cfg.Backup.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize compressor: %w", err)
	}
	a.archiver = archiver

	if a.uploadTargets == nil {
		a.uploadTargets = initializeUploadTargets(ctx, cfg, a.logger)
	}

	return a, nil
}

func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) []usecase.UploadTarget {
	var targets []usecase.UploadTarget

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "local":
			stor, err = storage.NewLocal(targetCfg.Path)
			if err != nil {
				log.Errorf("Failed to initialize local copy: %v", err)
				continue
			}
			log.Debugf("✓ Local copy enabled (%s)", targetCfg.Path)

		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Debugf("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Debugf("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		case "gcs":
			stor, err = storage.NewGCS(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Cloud Storage: %v", err)
				continue
			}
			log.Debugf("✓ Google Cloud Storage upload enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			stor, err = storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			log.Debugf("✓ Telegram upload enabled")

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets
}

// connect opens the server connection once per App.
func (a *App) connect(ctx context.Context) (domain.Server, error) {
	if a.server != nil {
		return a.server, nil
	}

	a.logger.Infof("Connecting to MySQL: %s@%s", a.config.MySQL.Username, a.config.MySQL.Address())
	server, err := database.OpenServer(ctx, a.config.MySQL)
	if err != nil {
		return nil, err
	}
	a.logger.Infof("✓ Connection successful")

	a.server = server
	return server, nil
}

// RunBackup selects databases and writes one archive. It returns a nil
// result when the operator selects nothing or the server has no user
// databases.
func (a *App) RunBackup(ctx context.Context) (*domain.BackupResult, error) {
	server, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}

	catalog, err := usecase.LoadCatalog(ctx, server)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		a.logger.Warnf("No user databases found")
		return nil, nil
	}

	selection, err := a.selectDatabases(ctx, server, catalog)
	if errors.Is(err, prompt.ErrNoSelection) {
		a.logger.Infof("No databases selected. Exiting...")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return a.backup(ctx, selection)
}

func (a *App) backup(ctx context.Context, selection domain.SelectionSet) (*domain.BackupResult, error) {
	opts := []usecase.BackupOption{
		usecase.WithStagingRoot(a.config.App.TempDir),
		usecase.WithSourceHost(a.config.MySQL.Address()),
	}
	if a.reporter != nil {
		opts = append(opts, usecase.WithBackupReporter(a.reporter))
	}

	log := a.logger.With("operation", "backup")
	uc := usecase.NewBackup(a.tools, a.archiver, a.uploadTargets, log, opts...)
	return uc.Execute(ctx, domain.BackupPlan{
		Databases: selection,
		Output:    usecase.ParseOutputSpec(a.config.Backup.Output),
	})
}

// selectDatabases prefers a configured selection and falls back to asking
// the operator.
func (a *App) selectDatabases(ctx context.Context, server domain.Server, catalog domain.Catalog) (domain.SelectionSet, error) {
	switch {
	case a.config.Backup.Select != "":
		return usecase.ParseSelection(a.config.Backup.Select, catalog)

	case len(a.config.Backup.Databases) > 0:
		set, missing, err := usecase.SelectByName(a.config.Backup.Databases, catalog)
		if len(missing) > 0 {
			a.logger.Warnf("Databases not found on the server: %s", strings.Join(missing, ", "))
		}
		return set, err

	case a.interactive:
		rows := make([]prompt.CatalogRow, len(catalog))
		for i, entry := range catalog {
			size, err := server.DatabaseSize(ctx, entry.Name)
			rows[i] = prompt.CatalogRow{Index: entry.Index, Name: entry.Name, Size: prompt.FormatSize(size, err)}
		}
		a.terminal.ShowCatalog(rows)
		return a.terminal.SelectDatabases(catalog)

	default:
		return nil, &domain.InvalidSelectionError{Reason: "no databases selected, use --select or --databases"}
	}
}

// RunRestore restores every dump of archivePath onto the server. A restore
// the operator declines or cancels returns a cancelled result and no error.
func (a *App) RunRestore(ctx context.Context, archivePath string) (*domain.RestoreResult, error) {
	log := a.logger.With("operation", "restore", "archive", filepath.Base(archivePath))

	server, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}

	schemas, err := usecase.ListSchemas(ctx, server)
	if err != nil {
		return nil, err
	}

	analyzer := usecase.NewAnalyzer(a.archiver, log, a.config.App.TempDir)
	analysis, err := analyzer.Analyze(ctx, archivePath, schemas)
	if err != nil {
		return nil, err
	}
	defer analysis.Close()

	a.terminal.ShowRestorePlan(analysis)

	if a.interactive && !a.config.Restore.AssumeYes {
		ok, err := a.terminal.Confirm("\nDo you want to proceed with the restore?", false)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Infof("Restore cancelled")
			return &domain.RestoreResult{Cancelled: true}, nil
		}
	}

	prompter, err := a.conflictPrompter(analysis)
	if err != nil {
		return nil, err
	}

	plan, err := usecase.ResolveConflicts(analysis, prompter)
	if err != nil {
		return nil, err
	}

	uc := usecase.NewRestore(server, a.tools, log, a.reporter)
	result, err := uc.Execute(ctx, plan)
	if err == nil && !result.Cancelled {
		log.Infof("✅ Restore completed: %d/%d databases restored", len(result.Restored()), len(plan.Entries))
	}
	return result, err
}

func (a *App) conflictPrompter(analysis *usecase.Analysis) (usecase.Prompter, error) {
	if a.config.Restore.OnConflict != "" {
		decision, ok := domain.ParseDecision(a.config.Restore.OnConflict)
		if !ok {
			return nil, fmt.Errorf("unknown conflict policy %q", a.config.Restore.OnConflict)
		}
		return usecase.NewFixedPolicy(decision, a.config.Restore.AssumeYes)
	}

	if a.interactive {
		return a.terminal, nil
	}

	if existing := analysis.Existing(); len(existing) > 0 {
		return nil, fmt.Errorf("databases already exist (%s), use --on-conflict to decide without a terminal",
			strings.Join(existing, ", "))
	}
	return usecase.NewFixedPolicy(domain.DecisionSkip, false)
}

// Check reports the client tool versions and whether the server answers.
func (a *App) Check(ctx context.Context, out io.Writer) error {
	versions, err := a.tools.Versions(ctx)
	tools := make([]string, 0, len(versions))
	for tool := range versions {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	for _, tool := range tools {
		fmt.Fprintf(out, "✓ %s: %s\n", tool, versions[tool])
	}
	if err != nil {
		return err
	}

	server, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if err := server.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ MySQL server reachable at %s\n", a.config.MySQL.Address())
	return nil
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

func (a *App) Shutdown() {
	if a.server != nil {
		if err := a.server.Close(); err != nil {
			a.logger.Warnf("Failed to close connection: %v", err)
		} else {
			a.logger.Debugf("Connection closed")
		}
	}
	for _, target := range a.uploadTargets {
		if closer, ok := target.Storage.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	a.logger.Close()
}
