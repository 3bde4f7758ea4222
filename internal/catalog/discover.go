package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Discover resolves launch paths for apps that request auto-detection and
// have no valid path yet. Search patterns may contain environment variables
// (${VAR}) and '*' globs; the first existing regular file wins. The catalog
// is saved afterwards when anything changed.
func (c *Catalog) Discover(log *slog.Logger) {
	changed := false
	for _, id := range c.IDs() {
		app := c.Apps[id]
		if !app.AutoDetect {
			continue
		}
		if app.Path != "" {
			if _, err := os.Stat(os.ExpandEnv(app.Path)); err == nil {
				continue
			}
		}
		found := findFirst(app.SearchPaths)
		if found == "" {
			log.Warn("app not found on this system", "app", id)
			continue
		}
		app.Path = found
		c.Apps[id] = app
		changed = true
		log.Info("app discovered", "app", id, "path", found)
	}
	if changed {
		if err := c.Save(); err != nil {
			log.Warn("failed to persist discovered paths", "error", err)
		}
	}
}

func findFirst(patterns []string) string {
	for _, p := range patterns {
		expanded := os.ExpandEnv(p)
		if containsGlob(expanded) {
			matches, err := filepath.Glob(expanded)
			if err != nil {
				continue
			}
			for _, m := range matches {
				if isRegularFile(m) {
					return m
				}
			}
			continue
		}
		if isRegularFile(expanded) {
			return expanded
		}
	}
	return ""
}

func containsGlob(s string) bool {
	for _, r := range s {
		if r == '*' || r == '?' || r == '[' {
			return true
		}
	}
	return false
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
