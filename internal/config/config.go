package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Output
		Kindle
		AppleBooks
		ExportSync
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Output struct {
		Path   string
		Pretty bool
	}

	Kindle struct {
		Region        string
		Headless      bool
		ProfileDir    string // Empty means the per-user default location
		LoginTimeout  time.Duration
		BookTimeout   time.Duration
		MaxPages      int
		ClippingsPath string
	}

	AppleBooks struct {
		AnnotationDBPath string // Empty means auto-detect the container path
		BookDBPath       string
	}

	ExportSync struct {
		Enabled  bool
		Schedule string // Cron format: "0 */6 * * *" = every 6 hours
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("output_path", DefaultOutputPath)
	v.SetDefault("output_pretty", true)

	// Kindle scraper defaults
	v.SetDefault("kindle_region", "us")
	v.SetDefault("kindle_headless", false)
	v.SetDefault("kindle_profile_dir", "")
	v.SetDefault("kindle_login_timeout", "5m")
	v.SetDefault("kindle_book_timeout", "10s")
	v.SetDefault("kindle_max_pages", 100)
	v.SetDefault("kindle_clippings_path", "")

	// Apple Books defaults (auto-detected when empty)
	v.SetDefault("applebooks_annotation_db", "")
	v.SetDefault("applebooks_book_db", "")

	// Scheduled re-export defaults
	v.SetDefault("export_sync_enabled", false)
	v.SetDefault("export_sync_schedule", "0 */6 * * *") // Every 6 hours

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Output: Output{
			Path:   v.GetString("OUTPUT_PATH"),
			Pretty: v.GetBool("OUTPUT_PRETTY"),
		},
		Kindle: Kindle{
			Region:        v.GetString("KINDLE_REGION"),
			Headless:      v.GetBool("KINDLE_HEADLESS"),
			ProfileDir:    v.GetString("KINDLE_PROFILE_DIR"),
			LoginTimeout:  v.GetDuration("KINDLE_LOGIN_TIMEOUT"),
			BookTimeout:   v.GetDuration("KINDLE_BOOK_TIMEOUT"),
			MaxPages:      v.GetInt("KINDLE_MAX_PAGES"),
			ClippingsPath: v.GetString("KINDLE_CLIPPINGS_PATH"),
		},
		AppleBooks: AppleBooks{
			AnnotationDBPath: v.GetString("APPLEBOOKS_ANNOTATION_DB"),
			BookDBPath:       v.GetString("APPLEBOOKS_BOOK_DB"),
		},
		ExportSync: ExportSync{
			Enabled:  v.GetBool("EXPORT_SYNC_ENABLED"),
			Schedule: v.GetString("EXPORT_SYNC_SCHEDULE"),
		},
	}
}
