package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Root of downloads/, thumbnails/, playlists.json and history
	// Default: ~/LunaMusic
	DataDir string

	// Directory containing ffmpeg/ffprobe, passed through to yt-dlp
	FFmpegLocation string

	// Executables, empty means PATH lookup
	YTDLPBinary string
	MPVBinary   string

	// Cache policy
	MaxUnpinned int

	// Download worker pool
	DownloadWorkers int
	DownloadRate    float64 // Download starts per second, 0 for unlimited

	// Initial playback volume in [0,1]
	Volume float64

	// Default number of search results
	SearchResults int

	History HistoryConfig
}

// HistoryConfig selects the play history backend
type HistoryConfig struct {
	Backend string // "csv" or "sqlite"
}

const (
	HistoryCSV    = "csv"
	HistorySQLite = "sqlite"
)

// Load reads configuration from .env, the config file and environment
func Load() (*Config, error) {
	// .env in the working directory feeds the LUNA_ environment (optional)
	_ = godotenv.Load()

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables, e.g. LUNA_HISTORY_BACKEND
	v.SetEnvPrefix("LUNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("ffmpeg_location", "")
	v.SetDefault("ytdlp_binary", "")
	v.SetDefault("mpv_binary", "")
	v.SetDefault("max_unpinned", 5)
	v.SetDefault("download_workers", 2)
	v.SetDefault("download_rate", 1.0)
	v.SetDefault("volume", 1.0)
	v.SetDefault("search_results", 10)
	v.SetDefault("history.backend", HistoryCSV)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		DataDir:         expandHome(v.GetString("data_dir")),
		FFmpegLocation:  expandHome(v.GetString("ffmpeg_location")),
		YTDLPBinary:     expandHome(v.GetString("ytdlp_binary")),
		MPVBinary:       expandHome(v.GetString("mpv_binary")),
		MaxUnpinned:     v.GetInt("max_unpinned"),
		DownloadWorkers: v.GetInt("download_workers"),
		DownloadRate:    v.GetFloat64("download_rate"),
		Volume:          v.GetFloat64("volume"),
		SearchResults:   v.GetInt("search_results"),
		History: HistoryConfig{
			Backend: strings.ToLower(v.GetString("history.backend")),
		},
	}

	if cfg.History.Backend != HistorySQLite {
		cfg.History.Backend = HistoryCSV
	}
	return cfg
}

// DownloadsDir is the audio cache root
func (c *Config) DownloadsDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

// ThumbnailsDir is the artwork cache root
func (c *Config) ThumbnailsDir() string {
	return filepath.Join(c.DataDir, "thumbnails")
}

// PlaylistsFile is the playlist store
func (c *Config) PlaylistsFile() string {
	return filepath.Join(c.DataDir, "playlists.json")
}

// HistoryFile is the play history for the configured backend
func (c *Config) HistoryFile() string {
	if c.History.Backend == HistorySQLite {
		return filepath.Join(c.DataDir, "history.db")
	}
	return filepath.Join(c.DataDir, "history.csv")
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "LunaMusic"
	}
	return filepath.Join(homeDir, "LunaMusic")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "luna")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(getConfigDir(), "config.yaml"))
}

// SaveTo writes configuration to the given file
func (c *Config) SaveTo(configFile string) error {
	v := viper.New()

	v.Set("data_dir", c.DataDir)
	v.Set("ffmpeg_location", c.FFmpegLocation)
	v.Set("ytdlp_binary", c.YTDLPBinary)
	v.Set("mpv_binary", c.MPVBinary)
	v.Set("max_unpinned", c.MaxUnpinned)
	v.Set("download_workers", c.DownloadWorkers)
	v.Set("download_rate", c.DownloadRate)
	v.Set("volume", c.Volume)
	v.Set("search_results", c.SearchResults)
	v.Set("history.backend", c.History.Backend)

	return v.WriteConfigAs(configFile)
}
