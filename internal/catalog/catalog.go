package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// App describes one manageable application. Identifiers are the keys of the
// catalog's apps map; the struct holds everything needed to launch the app
// and to find it again in the OS process table.
type App struct {
	Name        string   `json:"name" mapstructure:"name"`
	Icon        string   `json:"icon" mapstructure:"icon"`
	Path        string   `json:"path" mapstructure:"path"`
	Args        []string `json:"args" mapstructure:"args"`
	ProcessName string   `json:"process_name" mapstructure:"process_name"`
	AutoDetect  bool     `json:"auto_detect" mapstructure:"auto_detect"`
	SearchPaths []string `json:"search_paths" mapstructure:"search_paths"`
}

// Settings holds operator-tunable knobs merged from the catalog file.
type Settings struct {
	RateLimitSeconds int    `json:"rate_limit_seconds" mapstructure:"rate_limit_seconds"`
	AutoSavePids     bool   `json:"auto_save_pids" mapstructure:"auto_save_pids"`
	LogLevel         string `json:"log_level" mapstructure:"log_level"`
	StoreDSN         string `json:"store_dsn" mapstructure:"store_dsn"`
	AppLogDir        string `json:"app_log_dir" mapstructure:"app_log_dir"`
	HistoryAddr      string `json:"history_addr" mapstructure:"history_addr"`
	HistoryTable     string `json:"history_table" mapstructure:"history_table"`
}

// Catalog is the static, operator-editable list of manageable applications.
// It is loaded once at startup and only mutated by path auto-discovery.
type Catalog struct {
	Apps     map[string]App `json:"apps"`
	Settings Settings       `json:"settings"`

	path string
}

// Cooldown returns the dispatcher cooldown window.
func (c *Catalog) Cooldown() time.Duration {
	return time.Duration(c.Settings.RateLimitSeconds) * time.Second
}

// fileApp mirrors App with optional fields so a partially specified entry
// in the config file overrides defaults per field rather than wholesale.
type fileApp struct {
	Name        *string  `mapstructure:"name"`
	Icon        *string  `mapstructure:"icon"`
	Path        *string  `mapstructure:"path"`
	Args        []string `mapstructure:"args"`
	ProcessName *string  `mapstructure:"process_name"`
	AutoDetect  *bool    `mapstructure:"auto_detect"`
	SearchPaths []string `mapstructure:"search_paths"`
}

type fileCatalog struct {
	Apps     map[string]fileApp     `mapstructure:"apps"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

// Defaults returns the built-in catalog. New entries added here appear for
// existing installations on the next load without discarding operator edits.
func Defaults() *Catalog {
	return &Catalog{
		Apps: map[string]App{
			"dota": {
				Name:        "Dota 2",
				Icon:        "🎮",
				Args:        []string{"-applaunch", "570"},
				ProcessName: "dota2",
				AutoDetect:  true,
				SearchPaths: []string{
					"${HOME}/.steam/steam/steam.sh",
					"${PROGRAMFILES(X86)}/Steam/steam.exe",
				},
			},
			"spotify": {
				Name:        "Spotify",
				Icon:        "🎵",
				ProcessName: "spotify",
				AutoDetect:  true,
				SearchPaths: []string{
					"/usr/bin/spotify",
					"${HOME}/.local/bin/spotify",
					"${APPDATA}/Spotify/Spotify.exe",
				},
			},
			"discord": {
				Name:        "Discord",
				Icon:        "💬",
				ProcessName: "discord",
				AutoDetect:  true,
				SearchPaths: []string{
					"/usr/bin/discord",
					"/opt/discord/Discord",
					"${LOCALAPPDATA}/Discord/app-*/Discord.exe",
				},
			},
			"vscode": {
				Name:        "VS Code",
				Icon:        "💻",
				ProcessName: "code",
				AutoDetect:  true,
				SearchPaths: []string{
					"/usr/bin/code",
					"/usr/share/code/code",
					"${LOCALAPPDATA}/Programs/Microsoft VS Code/Code.exe",
				},
			},
		},
		Settings: Settings{
			RateLimitSeconds: 2,
			AutoSavePids:     true,
			LogLevel:         "INFO",
			StoreDSN:         "app_stats.db",
		},
	}
}

// Load reads the catalog file at path and merges it over the built-in
// defaults. A missing file yields the defaults; a malformed file also yields
// the defaults with a logged warning, never a startup failure.
func Load(path string, log *slog.Logger) *Catalog {
	c := Defaults()
	c.path = path
	if _, err := os.Stat(path); err != nil {
		log.Info("catalog file not found, using defaults", "path", path)
		return c
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		log.Warn("catalog file unreadable, using defaults", "path", path, "error", err)
		return c
	}
	var fc fileCatalog
	if err := v.Unmarshal(&fc); err != nil {
		log.Warn("catalog file malformed, using defaults", "path", path, "error", err)
		return c
	}
	c.mergeApps(fc.Apps)
	c.mergeSettings(v)
	return c
}

func (c *Catalog) mergeApps(apps map[string]fileApp) {
	for id, fa := range apps {
		app := c.Apps[id] // zero value for ids unknown to the defaults
		if fa.Name != nil {
			app.Name = *fa.Name
		}
		if fa.Icon != nil {
			app.Icon = *fa.Icon
		}
		if fa.Path != nil {
			app.Path = *fa.Path
		}
		if fa.Args != nil {
			app.Args = fa.Args
		}
		if fa.ProcessName != nil {
			app.ProcessName = *fa.ProcessName
		}
		if fa.AutoDetect != nil {
			app.AutoDetect = *fa.AutoDetect
		}
		if fa.SearchPaths != nil {
			app.SearchPaths = fa.SearchPaths
		}
		c.Apps[id] = app
	}
}

func (c *Catalog) mergeSettings(v *viper.Viper) {
	if v.IsSet("settings.rate_limit_seconds") {
		c.Settings.RateLimitSeconds = v.GetInt("settings.rate_limit_seconds")
	}
	if v.IsSet("settings.auto_save_pids") {
		c.Settings.AutoSavePids = v.GetBool("settings.auto_save_pids")
	}
	if v.IsSet("settings.log_level") {
		c.Settings.LogLevel = v.GetString("settings.log_level")
	}
	if v.IsSet("settings.store_dsn") {
		c.Settings.StoreDSN = v.GetString("settings.store_dsn")
	}
	if v.IsSet("settings.app_log_dir") {
		c.Settings.AppLogDir = v.GetString("settings.app_log_dir")
	}
	if v.IsSet("settings.history_addr") {
		c.Settings.HistoryAddr = v.GetString("settings.history_addr")
	}
	if v.IsSet("settings.history_table") {
		c.Settings.HistoryTable = v.GetString("settings.history_table")
	}
}

// Save writes the current catalog (including discovered paths) back to its
// file so manual edits and discovery results survive restarts.
func (c *Catalog) Save() error {
	if c.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (App, bool) {
	a, ok := c.Apps[id]
	return a, ok
}

// IDs returns all application identifiers in catalog order. The order is
// the sorted identifier order so sweeps like closeAll are deterministic.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Apps))
	for id := range c.Apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Command returns the argv to launch id, or an error when the app has no
// usable path configured.
func (c *Catalog) Command(id string) ([]string, error) {
	a, ok := c.Apps[id]
	if !ok {
		return nil, fmt.Errorf("unknown app: %s", id)
	}
	if a.Path == "" {
		return nil, fmt.Errorf("app %s has no launch path", id)
	}
	path := os.ExpandEnv(a.Path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("launch path for %s does not exist: %s", id, path)
	}
	return append([]string{path}, a.Args...), nil
}

// ProcessName returns the OS process name used for fallback matching.
func (c *Catalog) ProcessName(id string) string {
	return c.Apps[id].ProcessName
}

// DisplayName returns the human-readable name, falling back to the id.
func (c *Catalog) DisplayName(id string) string {
	if a, ok := c.Apps[id]; ok && a.Name != "" {
		return a.Name
	}
	return id
}

// SetPath sets a manually chosen launch path for id after verifying it
// exists, then persists the catalog.
func (c *Catalog) SetPath(id, path string) error {
	a, ok := c.Apps[id]
	if !ok {
		return fmt.Errorf("unknown app: %s", id)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path does not exist: %s", path)
	}
	a.Path = filepath.Clean(path)
	c.Apps[id] = a
	return c.Save()
}
