// Package config provides run configuration, TOML parsing and path helpers.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds everything a processing run needs to locate its inputs and
// tune the correlation pass.
type Config struct {
	// DataDir holds the extracted per-course CSV sources.
	DataDir string `toml:"data_dir"`
	// ExportDir receives one subdirectory of output per course.
	ExportDir string `toml:"export_dir"`
	// CourseList optionally names a file with one course ID per line.
	CourseList string `toml:"course_list"`
	// Courses lists course IDs inline; merged with CourseList.
	Courses []string `toml:"courses"`

	Visibility VisibilityConfig `toml:"visibility"`
	Timing     TimingConfig     `toml:"timing"`
}

// VisibilityConfig sets the suffix lengths used to match event-source IDs
// against the item-definition source. The two passes compare at different
// widths because the sources encode IDs differently; the defaults reflect
// observed export widths but are not hard-coded at the call sites.
type VisibilityConfig struct {
	AttemptSuffixLen int `toml:"attempt_suffix_len"`
	TimingSuffixLen  int `toml:"timing_suffix_len"`
}

// TimingConfig tunes the browse-event scan.
type TimingConfig struct {
	// BrowseSegment is the slash-split fragment of the event-type string
	// carrying the item-family token. Older export variants used 5.
	BrowseSegment int `toml:"browse_segment"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		DataDir:   filepath.Join(XDGDataHome(), "itemgrid", "raws"),
		ExportDir: filepath.Join(XDGDataHome(), "itemgrid", "exports"),
		Visibility: VisibilityConfig{
			AttemptSuffixLen: 32,
			TimingSuffixLen:  36,
		},
		Timing: TimingConfig{
			BrowseSegment: 6,
		},
	}
}

// Load reads a TOML config from path on top of the defaults. A missing file
// is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("stat config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// SanitizeCourse converts a platform course ID to its filesystem form.
func SanitizeCourse(course string) string {
	return strings.TrimSpace(strings.ReplaceAll(course, "/", "_"))
}

// ResolveCourses merges the inline course list with the course-list file,
// sanitized and deduplicated in order.
func (c Config) ResolveCourses() ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	push := func(course string) {
		course = SanitizeCourse(course)
		if course == "" {
			return
		}
		if _, dup := seen[course]; dup {
			return
		}
		seen[course] = struct{}{}
		out = append(out, course)
	}

	for _, course := range c.Courses {
		push(course)
	}

	if c.CourseList != "" {
		f, err := os.Open(c.CourseList)
		if err != nil {
			return nil, fmt.Errorf("open course list: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			push(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read course list: %w", err)
		}
	}
	return out, nil
}

// SubmissionsPath returns the submission-event source for a course.
func (c Config) SubmissionsPath(course string) string {
	return filepath.Join(c.DataDir, course+"_ProblemEvents.csv")
}

// BrowsePath returns the browse-event source for a course.
func (c Config) BrowsePath(course string) string {
	return filepath.Join(c.DataDir, course+"_BrowseEvents.csv")
}

// DefinitionsPath returns the item-definition source for a course.
func (c Config) DefinitionsPath(course string) string {
	return filepath.Join(c.DataDir, course+"_ProblemMetadata.csv")
}

// ExportPath returns the output directory for a course.
func (c Config) ExportPath(course string) string {
	return filepath.Join(c.ExportDir, course)
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "itemgrid", "config.toml")
}
