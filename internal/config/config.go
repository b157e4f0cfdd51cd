package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Restore RestoreConfig `mapstructure:"restore"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Verbose  bool   `mapstructure:"verbose"`
	// TempDir is where staging and extraction directories are created. Empty
	// means the system default.
	TempDir string `mapstructure:"temp_dir"`
}

type MySQLConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Socket         string        `mapstructure:"socket"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	DumpBinary   string `mapstructure:"mysqldump_path"`
	ClientBinary string `mapstructure:"mysql_path"`
}

func (m MySQLConfig) Address() string {
	if m.Socket != "" {
		return m.Socket
	}
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

type BackupConfig struct {
	Output           string         `mapstructure:"output"`
	Select           string         `mapstructure:"select"`
	Databases        []string       `mapstructure:"databases"`
	CompressionLevel int            `mapstructure:"compression_level"`
	Schedule         string         `mapstructure:"schedule"`
	RetentionDays    int            `mapstructure:"retention_days"`
	UploadTargets    []UploadTarget `mapstructure:"upload_targets"`
}

type RestoreConfig struct {
	OnConflict string `mapstructure:"on_conflict"`
	AssumeYes  bool   `mapstructure:"assume_yes"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Local copy
	Path string `mapstructure:"path"`

	// Google Drive and Google Cloud Storage
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`
	TokenFile       string `mapstructure:"token_file"`

	// AWS S3 and Google Cloud Storage
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Prefix       string `mapstructure:"prefix"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`
}

// flagKeys maps command line flags onto configuration keys. Flags missing
// from the set being loaded are ignored.
var flagKeys = map[string]string{
	"host":           "mysql.host",
	"port":           "mysql.port",
	"user":           "mysql.username",
	"socket":         "mysql.socket",
	"output":         "backup.output",
	"select":         "backup.select",
	"databases":      "backup.databases",
	"schedule":       "backup.schedule",
	"retention":      "backup.retention_days",
	"on-conflict":    "restore.on_conflict",
	"yes":            "restore.assume_yes",
	"verbose":        "app.verbose",
	"log-file":       "app.log_file",
	"temp-dir":       "app.temp_dir",
	"mysqldump":      "mysql.mysqldump_path",
	"mysql-client":   "mysql.mysql_path",
	"compress-level": "backup.compression_level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mdump")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.verbose", false)
	v.SetDefault("app.temp_dir", "")

	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.username", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.socket", "")
	v.SetDefault("mysql.connect_timeout", 10*time.Second)
	v.SetDefault("mysql.mysqldump_path", "mysqldump")
	v.SetDefault("mysql.mysql_path", "mysql")

	v.SetDefault("backup.output", "")
	v.SetDefault("backup.select", "")
	v.SetDefault("backup.databases", []string{})
	v.SetDefault("backup.compression_level", 9)
	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.retention_days", 0)

	v.SetDefault("restore.on_conflict", "")
	v.SetDefault("restore.assume_yes", false)
}

// Load reads the optional YAML file at path, then MDUMP_ environment
// variables, then the flags of fs that were set on the command line.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("MDUMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.App.Verbose {
		cfg.App.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MySQL.Host == "" && c.MySQL.Socket == "" {
		return fmt.Errorf("mysql.host is required")
	}
	if c.MySQL.Port < 1 || c.MySQL.Port > 65535 {
		return fmt.Errorf("mysql.port %d is out of range", c.MySQL.Port)
	}
	if c.MySQL.Username == "" {
		return fmt.Errorf("mysql.username is required")
	}

	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative")
	}
	if c.Backup.CompressionLevel < -2 || c.Backup.CompressionLevel > 9 {
		return fmt.Errorf("backup.compression_level %d is out of range", c.Backup.CompressionLevel)
	}
	if c.Backup.Select != "" && len(c.Backup.Databases) > 0 {
		return fmt.Errorf("backup.select and backup.databases are mutually exclusive")
	}

	switch c.Restore.OnConflict {
	case "", "overwrite", "skip", "cancel":
	default:
		return fmt.Errorf("restore.on_conflict must be one of overwrite, skip, cancel")
	}

	for i, target := range c.Backup.UploadTargets {
		if !target.Enabled {
			continue
		}
		if err := target.validate(); err != nil {
			return fmt.Errorf("backup.upload_targets[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateSchedule checks the settings only scheduled runs need.
func (c *Config) ValidateSchedule() error {
	if c.Backup.Schedule == "" {
		return fmt.Errorf("backup.schedule is required")
	}
	if c.Backup.Select == "" && len(c.Backup.Databases) == 0 {
		return fmt.Errorf("backup.select or backup.databases is required for scheduled backups")
	}
	if strings.HasSuffix(c.Backup.Output, ".tar.gz") {
		return fmt.Errorf("backup.output must be a directory for scheduled backups")
	}
	return nil
}

func (t UploadTarget) validate() error {
	switch t.Type {
	case "local":
		if t.Path == "" {
			return fmt.Errorf("local requires path")
		}
	case "s3":
		if t.Bucket == "" || t.Region == "" {
			return fmt.Errorf("s3 requires bucket and region")
		}
	case "gcs":
		if t.Bucket == "" {
			return fmt.Errorf("gcs requires bucket")
		}
	case "gdrive":
		if t.CredentialsFile == "" {
			return fmt.Errorf("gdrive requires credentials_file")
		}
	case "telegram":
		if t.BotToken == "" || t.ChatID == "" {
			return fmt.Errorf("telegram requires bot_token and chat_id")
		}
	default:
		return fmt.Errorf("unknown upload target type %q", t.Type)
	}
	return nil
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
