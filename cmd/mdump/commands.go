package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/semmidev/mdump/internal/adapter/prompt"
	"github.com/semmidev/mdump/internal/app"
	"github.com/semmidev/mdump/internal/config"
	"github.com/semmidev/mdump/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	askPassword bool
	archive     string

	credentialsFile string
	tokenFile       string
	authAddr        string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mdump",
		Short: "MySQL multi-database backup and restore",
		Long: `Back up several MySQL databases into one .tar.gz archive and restore them later.

Output options for backup:
  no -o flag                   ./mysql_backup_YYYYMMDD_HHMMSS/ directory
  -o /path/to/dir/             timestamped archive inside the directory
  -o /path/to/backup.tar.gz    archive with exactly this name`,
		Example: `  mdump -H localhost -u root -p
  mdump backup -u root -p -o /backups/ -s 1,3-5
  mdump restore -u root -p -f /backups/mysql_backup_20250901_010000.tar.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file")
	flags.StringP("host", "H", "localhost", "MySQL server host")
	flags.IntP("port", "P", 3306, "MySQL server port")
	flags.StringP("user", "u", "root", "MySQL username")
	flags.BoolVarP(&opts.askPassword, "password", "p", false, "prompt for password")
	flags.String("socket", "", "MySQL unix socket")
	flags.Bool("verbose", false, "enable debug logging")
	flags.String("log-file", "", "also write JSON logs to this file")
	flags.String("temp-dir", "", "directory for staging and extraction")
	flags.String("mysqldump", "mysqldump", "mysqldump binary")
	flags.String("mysql-client", "mysql", "mysql client binary")

	addBackupFlags(root.Flags())

	backup := &cobra.Command{
		Use:   "backup",
		Short: "Back up selected databases into one archive (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, opts)
		},
	}
	addBackupFlags(backup.Flags())

	restore := &cobra.Command{
		Use:   "restore",
		Short: "Restore the databases of an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, opts)
		},
	}
	restore.Flags().StringVarP(&opts.archive, "file", "f", "", "backup archive to restore")
	restore.Flags().String("on-conflict", "", "decision for existing databases: overwrite, skip or cancel")
	restore.Flags().BoolP("yes", "y", false, "skip confirmations, required to overwrite without a terminal")
	_ = restore.MarkFlagRequired("file")

	check := &cobra.Command{
		Use:   "check",
		Short: "Verify the MySQL client tools and the server connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Run backups on a cron schedule with retention cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts)
		},
	}
	addBackupFlags(schedule.Flags())
	schedule.Flags().String("schedule", "", "cron spec with seconds, e.g. \"0 0 2 * * *\"")
	schedule.Flags().Int("retention", 0, "delete archives older than this many days, 0 keeps all")

	auth := &cobra.Command{
		Use:   "auth",
		Short: "Authorize upload targets",
	}
	gdrive := &cobra.Command{
		Use:   "gdrive",
		Short: "Obtain a Google Drive token through the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthDrive(cmd, opts)
		},
	}
	gdrive.Flags().StringVar(&opts.credentialsFile, "credentials", "client_secret.json", "OAuth client secret file")
	gdrive.Flags().StringVar(&opts.tokenFile, "token", "token.json", "where to save the token")
	gdrive.Flags().StringVar(&opts.authAddr, "addr", "localhost:8085", "address of the local callback server")
	auth.AddCommand(gdrive)

	root.AddCommand(backup, restore, check, schedule, auth)
	return root
}

func addBackupFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "output directory or archive file name")
	fs.StringP("select", "s", "", "databases to back up, e.g. 1,3-5,7 or all")
	fs.StringSlice("databases", nil, "databases to back up by name")
	fs.Int("compress-level", 9, "gzip compression level")
}

// setup loads configuration and asks for the password when -p was given.
func setup(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	if opts.askPassword {
		password, err := prompt.Stdio().Password(cfg.MySQL.Username, cfg.MySQL.Host)
		if err != nil {
			return nil, err
		}
		cfg.MySQL.Password = password
	}

	return cfg, nil
}

func newApp(ctx context.Context, cmd *cobra.Command, opts *options) (*app.App, error) {
	cfg, err := setup(cmd, opts)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func runBackup(cmd *cobra.Command, opts *options) error {
	printBanner()

	application, err := newApp(cmd.Context(), cmd, opts)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	result, err := application.RunBackup(cmd.Context())
	if err != nil || result == nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("\n✅ Backup completed: %s\n", result.ArchivePath)
	fmt.Printf("   Databases: %d\n", len(result.Databases))
	fmt.Printf("   Size:      %.2f MB\n", float64(result.Size)/(1024*1024))
	fmt.Printf("   SHA-256:   %s\n", result.Checksum)
	if len(result.Uploaded) > 0 {
		fmt.Printf("   Uploaded:  %v\n", result.Uploaded)
	}
	return nil
}

func runRestore(cmd *cobra.Command, opts *options) error {
	application, err := newApp(cmd.Context(), cmd, opts)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	result, err := application.RunRestore(cmd.Context(), opts.archive)
	if result != nil && result.Cancelled {
		color.New(color.FgYellow).Println("Restore cancelled")
	}
	return err
}

func runCheck(cmd *cobra.Command, opts *options) error {
	application, err := newApp(cmd.Context(), cmd, opts)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	return application.Check(cmd.Context(), os.Stdout)
}

func runSchedule(cmd *cobra.Command, opts *options) error {
	application, err := newApp(cmd.Context(), cmd, opts)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	return application.RunSchedule(cmd.Context())
}

func runAuthDrive(cmd *cobra.Command, opts *options) error {
	log, err := logger.New(logger.Options{Level: "info"})
	if err != nil {
		return err
	}
	defer log.Close()

	return app.AuthorizeDrive(cmd.Context(), log, opts.credentialsFile, opts.tokenFile, opts.authAddr)
}
