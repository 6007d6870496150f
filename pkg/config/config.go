package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// ProfilePlaceholder is replaced by the profile name in data paths
	ProfilePlaceholder = "{target_profile}"
	// OutputDirPlaceholder is replaced by data.output_dir in data paths
	OutputDirPlaceholder = "{output_dir}"

	envPrefix = "IGHARVEST_"
)

// Config holds all configuration options for a harvesting run.
// It is built once at startup and treated as read-only afterwards;
// ForProfile derives the per-profile copies handed to each component.
type Config struct {
	// Run behaviour, mirrors the [main] table of the config file
	Main MainConfig `toml:"main" yaml:"main" json:"main"`

	// Persisted state layout
	Data DataConfig `toml:"data" yaml:"data" json:"data"`

	// Browser session and navigation guard
	Browser BrowserConfig `toml:"browser" yaml:"browser" json:"browser"`

	// Optional media downloads
	Download DownloadConfig `toml:"download" yaml:"download" json:"download"`

	// Notification preferences
	Notifications NotificationConfig `toml:"notifications" yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`
}

// ProfileTarget is one profile to harvest and how many posts to collect from it
type ProfileTarget struct {
	Name     string `toml:"name" yaml:"name" json:"name" validate:"required"`
	NumPosts int    `toml:"num_posts" yaml:"num_posts" json:"num_posts" validate:"gte=0"`
}

// MainConfig holds the scraping cadence and limits
type MainConfig struct {
	TargetProfile  string          `toml:"target_profile" yaml:"target_profile" json:"target_profile"`
	TargetProfiles []ProfileTarget `toml:"target_profiles" yaml:"target_profiles" json:"target_profiles" validate:"dive"`
	NumPosts       int             `toml:"num_posts" yaml:"num_posts" json:"num_posts" validate:"gt=0"`

	Headless  bool   `toml:"headless" yaml:"headless" json:"headless"`
	UserAgent string `toml:"user_agent" yaml:"user_agent" json:"user_agent"`

	RateLimitSecondsMin float64 `toml:"rate_limit_seconds_min" yaml:"rate_limit_seconds_min" json:"rate_limit_seconds_min" validate:"gte=0"`
	RateLimitSecondsMax float64 `toml:"rate_limit_seconds_max" yaml:"rate_limit_seconds_max" json:"rate_limit_seconds_max" validate:"gtefield=RateLimitSecondsMin"`

	MaxRetries     int  `toml:"max_retries" yaml:"max_retries" json:"max_retries" validate:"gte=0"`
	BatchSize      int  `toml:"batch_size" yaml:"batch_size" json:"batch_size" validate:"gte=1"`
	RandomizeBatch bool `toml:"randomize_batch" yaml:"randomize_batch" json:"randomize_batch"`

	// TabsPerMinute caps post tab opens; 0 disables the cap
	TabsPerMinute int `toml:"tabs_per_minute" yaml:"tabs_per_minute" json:"tabs_per_minute" validate:"gte=0"`
	// TabLimiter is the algorithm behind TabsPerMinute
	TabLimiter string `toml:"tab_limiter" yaml:"tab_limiter" json:"tab_limiter" validate:"omitempty,oneof=sliding_window token_bucket rate"`

	HumanMouseMoveDuration float64 `toml:"human_mouse_move_duration" yaml:"human_mouse_move_duration" json:"human_mouse_move_duration" validate:"gte=0"`

	PageScrollRetries     int    `toml:"page_scroll_retries" yaml:"page_scroll_retries" json:"page_scroll_retries" validate:"gte=1"`
	SaveEvery             int    `toml:"save_every" yaml:"save_every" json:"save_every" validate:"gte=1"`
	TabOpenRetries        int    `toml:"tab_open_retries" yaml:"tab_open_retries" json:"tab_open_retries" validate:"gte=1"`
	CommentsScrollRetries int    `toml:"comments_scroll_retries" yaml:"comments_scroll_retries" json:"comments_scroll_retries" validate:"gte=0"`
	CommentScrollSteps    int    `toml:"comment_scroll_steps" yaml:"comment_scroll_steps" json:"comment_scroll_steps" validate:"gte=0"`
	ExcludeMarker         string `toml:"exclude_marker" yaml:"exclude_marker" json:"exclude_marker"`
}

// DataConfig holds the paths of every persisted artifact.
// Paths may contain {output_dir} and {target_profile}.
type DataConfig struct {
	OutputDir    string `toml:"output_dir" yaml:"output_dir" json:"output_dir" validate:"required"`
	PostsPath    string `toml:"posts_path" yaml:"posts_path" json:"posts_path" validate:"required"`
	MetadataPath string `toml:"metadata_path" yaml:"metadata_path" json:"metadata_path" validate:"required"`
	SkippedPath  string `toml:"skipped_path" yaml:"skipped_path" json:"skipped_path" validate:"required"`
	TmpPath      string `toml:"tmp_path" yaml:"tmp_path" json:"tmp_path" validate:"required"`
	ManifestPath string `toml:"manifest_path" yaml:"manifest_path" json:"manifest_path" validate:"required"`
	MediaDir     string `toml:"media_dir" yaml:"media_dir" json:"media_dir"`
	CookieFile   string `toml:"cookie_file" yaml:"cookie_file" json:"cookie_file"`
	Account      string `toml:"account" yaml:"account" json:"account"`
}

// BrowserConfig holds the browser session and guard settings
type BrowserConfig struct {
	ControlURL           string  `toml:"control_url" yaml:"control_url" json:"control_url"`
	Bin                  string  `toml:"bin" yaml:"bin" json:"bin"`
	WindowWidth          int     `toml:"window_width" yaml:"window_width" json:"window_width" validate:"gte=320"`
	WindowHeight         int     `toml:"window_height" yaml:"window_height" json:"window_height" validate:"gte=240"`
	AllowedHost          string  `toml:"allowed_host" yaml:"allowed_host" json:"allowed_host" validate:"required,hostname"`
	GuardIntervalSeconds float64 `toml:"guard_interval_seconds" yaml:"guard_interval_seconds" json:"guard_interval_seconds" validate:"gt=0"`
	InteractiveGuard     bool    `toml:"interactive_guard" yaml:"interactive_guard" json:"interactive_guard"`
	PageTimeoutSeconds   float64 `toml:"page_timeout_seconds" yaml:"page_timeout_seconds" json:"page_timeout_seconds" validate:"gt=0"`
	Debug                bool    `toml:"debug" yaml:"debug" json:"debug"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Enabled           bool    `toml:"enabled" yaml:"enabled" json:"enabled"`
	Concurrent        int     `toml:"concurrent" yaml:"concurrent" json:"concurrent" validate:"gte=1,lte=10"`
	TimeoutSeconds    float64 `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds" validate:"gt=0"`
	RetryAttempts     int     `toml:"retry_attempts" yaml:"retry_attempts" json:"retry_attempts" validate:"gte=1"`
	RequestsPerMinute int     `toml:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=1"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	OnComplete       bool   `toml:"on_complete" yaml:"on_complete" json:"on_complete"`
	OnError          bool   `toml:"on_error" yaml:"on_error" json:"on_error"`
	OnViolation      bool   `toml:"on_violation" yaml:"on_violation" json:"on_violation"`
	NotificationType string `toml:"notification_type" yaml:"notification_type" json:"notification_type" validate:"oneof=terminal desktop none"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	File       string `toml:"file" yaml:"file" json:"file"`
	MaxSize    int    `toml:"max_size" yaml:"max_size" json:"max_size" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAge     int    `toml:"max_age" yaml:"max_age" json:"max_age" validate:"gte=0"`
	Compress   bool   `toml:"compress" yaml:"compress" json:"compress"`
}

// DefaultUserAgent is sent when main.user_agent is empty
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Main: MainConfig{
			NumPosts:               12,
			Headless:               true,
			UserAgent:              DefaultUserAgent,
			RateLimitSecondsMin:    2,
			RateLimitSecondsMax:    5,
			MaxRetries:             3,
			BatchSize:              4,
			RandomizeBatch:         false,
			TabsPerMinute:          20,
			TabLimiter:             "sliding_window",
			HumanMouseMoveDuration: 0.5,
			PageScrollRetries:      3,
			SaveEvery:              5,
			TabOpenRetries:         4,
			CommentsScrollRetries:  1,
			CommentScrollSteps:     15,
			ExcludeMarker:          "reel",
		},
		Data: DataConfig{
			OutputDir:    "outputs",
			PostsPath:    "{output_dir}/{target_profile}/posts.json",
			MetadataPath: "{output_dir}/{target_profile}/metadata.jsonl",
			SkippedPath:  "{output_dir}/{target_profile}/skipped.jsonl",
			TmpPath:      "{output_dir}/{target_profile}/tmp.jsonl",
			ManifestPath: "{output_dir}/{target_profile}/run.json",
			MediaDir:     "{output_dir}/{target_profile}/media",
		},
		Browser: BrowserConfig{
			WindowWidth:          1920,
			WindowHeight:         1080,
			AllowedHost:          "www.instagram.com",
			GuardIntervalSeconds: 1,
			InteractiveGuard:     true,
			PageTimeoutSeconds:   10,
		},
		Download: DownloadConfig{
			Enabled:           false,
			Concurrent:        3,
			TimeoutSeconds:    30,
			RetryAttempts:     3,
			RequestsPerMinute: 60,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			OnViolation:      true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// Seconds converts a fractional seconds value from the config into a duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RateLimitWindow returns the inter-batch delay window
func (m MainConfig) RateLimitWindow() (time.Duration, time.Duration) {
	return Seconds(m.RateLimitSecondsMin), Seconds(m.RateLimitSecondsMax)
}

// MouseMoveDuration returns how long a human-like mouse move should take
func (m MainConfig) MouseMoveDuration() time.Duration {
	return Seconds(m.HumanMouseMoveDuration)
}

// GuardInterval returns the navigation guard polling interval
func (b BrowserConfig) GuardInterval() time.Duration {
	return Seconds(b.GuardIntervalSeconds)
}

// PageTimeout returns how long to wait for a page to render its sections
func (b BrowserConfig) PageTimeout() time.Duration {
	return Seconds(b.PageTimeoutSeconds)
}

// Timeout returns the per-request media download timeout
func (d DownloadConfig) Timeout() time.Duration {
	return Seconds(d.TimeoutSeconds)
}

// Targets returns the profiles to harvest. target_profiles wins over the
// single target_profile; a profile without num_posts inherits main.num_posts.
func (c *Config) Targets() []ProfileTarget {
	var targets []ProfileTarget
	if len(c.Main.TargetProfiles) > 0 {
		for _, t := range c.Main.TargetProfiles {
			if t.NumPosts <= 0 {
				t.NumPosts = c.Main.NumPosts
			}
			targets = append(targets, t)
		}
		return targets
	}
	if c.Main.TargetProfile != "" {
		targets = append(targets, ProfileTarget{Name: c.Main.TargetProfile, NumPosts: c.Main.NumPosts})
	}
	return targets
}

// ForProfile returns a copy of the config scoped to one profile with every
// data path expanded. The receiver is not modified.
func (c *Config) ForProfile(target ProfileTarget) *Config {
	cp := *c
	cp.Main.TargetProfiles = nil
	cp.Main.TargetProfile = target.Name
	if target.NumPosts > 0 {
		cp.Main.NumPosts = target.NumPosts
	}

	expand := func(p string) string {
		if p == "" {
			return p
		}
		p = strings.ReplaceAll(p, OutputDirPlaceholder, c.Data.OutputDir)
		p = strings.ReplaceAll(p, ProfilePlaceholder, target.Name)
		return filepath.Clean(p)
	}

	cp.Data.PostsPath = expand(c.Data.PostsPath)
	cp.Data.MetadataPath = expand(c.Data.MetadataPath)
	cp.Data.SkippedPath = expand(c.Data.SkippedPath)
	cp.Data.TmpPath = expand(c.Data.TmpPath)
	cp.Data.ManifestPath = expand(c.Data.ManifestPath)
	cp.Data.MediaDir = expand(c.Data.MediaDir)
	cp.Data.CookieFile = expand(c.Data.CookieFile)

	return &cp
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(envPrefix + "TARGET_PROFILE"); v != "" {
		c.Main.TargetProfile = v
		c.Main.TargetProfiles = nil
	}
	if v := os.Getenv(envPrefix + "NUM_POSTS"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.Main.NumPosts = val
		}
	}
	if v := os.Getenv(envPrefix + "BATCH_SIZE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.Main.BatchSize = val
		}
	}
	if v := os.Getenv(envPrefix + "HEADLESS"); v != "" {
		c.Main.Headless = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Main.UserAgent = v
	}

	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Data.OutputDir = v
	}
	if v := os.Getenv(envPrefix + "COOKIE_FILE"); v != "" {
		c.Data.CookieFile = v
	}
	if v := os.Getenv(envPrefix + "ACCOUNT"); v != "" {
		c.Data.Account = v
	}

	if v := os.Getenv(envPrefix + "CONTROL_URL"); v != "" {
		c.Browser.ControlURL = v
	}
	if v := os.Getenv(envPrefix + "CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}

	if v := os.Getenv(envPrefix + "DOWNLOAD_ENABLED"); v != "" {
		c.Download.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "CONCURRENT_DOWNLOADS"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.Download.Concurrent = val
		}
	}

	if v := os.Getenv(envPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return nil
}

// LoadFromFile loads configuration from a TOML or YAML file, chosen by extension
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = toml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"igharvest.toml",
		".igharvest.toml",
		".igharvest.yaml",
		".igharvest.yml",
		filepath.Join(home, ".config", "igharvest", "config.toml"),
		filepath.Join(home, ".config", "igharvest", "config.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q constraint (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if len(c.Targets()) == 0 {
		errs = append(errs, errors.New("at least one target profile is required"))
	}
	for _, t := range c.Targets() {
		if strings.ContainsAny(t.Name, "/?#") {
			errs = append(errs, fmt.Errorf("invalid profile name %q", t.Name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file. The format follows the extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if profile, ok := flags["profile"].(string); ok && profile != "" {
		// Restrict the run to one of the configured profiles, or add it
		var picked []ProfileTarget
		for _, t := range c.Targets() {
			if t.Name == profile {
				picked = append(picked, t)
			}
		}
		if len(picked) == 0 {
			picked = []ProfileTarget{{Name: profile, NumPosts: c.Main.NumPosts}}
		}
		c.Main.TargetProfiles = picked
	}
	if numPosts, ok := flags["num-posts"].(int); ok && numPosts > 0 {
		c.Main.NumPosts = numPosts
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Main.Headless = headless
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Data.OutputDir = outputDir
	}
	if cookieFile, ok := flags["cookie-file"].(string); ok && cookieFile != "" {
		c.Data.CookieFile = cookieFile
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Data.Account = account
	}
	if controlURL, ok := flags["control-url"].(string); ok && controlURL != "" {
		c.Browser.ControlURL = controlURL
	}
	if debug, ok := flags["debug"].(bool); ok && debug {
		c.Browser.Debug = true
	}
	if download, ok := flags["download"].(bool); ok && download {
		c.Download.Enabled = true
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.Concurrent = concurrent
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
