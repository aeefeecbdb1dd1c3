// Package settings persists the user's update preferences and the time of
// the last update check.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is how often automatic update checks run.
type Interval string

const (
	Daily   Interval = "Daily"
	Weekly  Interval = "Weekly"
	Monthly Interval = "Monthly"
)

// ParseInterval accepts interval names case-insensitively.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	default:
		return "", fmt.Errorf("invalid interval %q (want Daily, Weekly or Monthly)", s)
	}
}

// Settings are the persisted update preferences.
type Settings struct {
	AutoCheck    bool     `yaml:"auto_check" json:"auto_check"`
	AutoDownload bool     `yaml:"auto_download" json:"auto_download"`
	Interval     Interval `yaml:"interval" json:"interval"`
	// LastCheck is the Unix time of the last check, 0 if never.
	LastCheck int64 `yaml:"last_check" json:"last_check"`
}

// Defaults returns the settings of a fresh install.
func Defaults() Settings {
	return Settings{
		AutoCheck:    true,
		AutoDownload: false,
		Interval:     Monthly,
	}
}

// LastCheckTime returns LastCheck as a time, or the zero time.
func (s Settings) LastCheckTime() time.Time {
	if s.LastCheck <= 0 {
		return time.Time{}
	}
	return time.Unix(s.LastCheck, 0)
}

// IsDue reports whether an automatic check should run at now. Daily checks
// are due once per calendar day in now's location; Weekly after 7 days;
// anything else after 30 days.
func (s Settings) IsDue(now time.Time) bool {
	if s.LastCheck <= 0 {
		return true
	}
	last := time.Unix(s.LastCheck, 0).In(now.Location())
	switch s.Interval {
	case Daily:
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd
	case Weekly:
		return now.Sub(last) >= 7*24*time.Hour
	default:
		return now.Sub(last) >= 30*24*time.Hour
	}
}

// Keys lists the names accepted by Set.
var Keys = []string{"auto_check", "auto_download", "interval"}

// Set assigns one setting by name from its string form.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "auto_check", "auto_download":
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: want true or false", value, key)
		}
		if key == "auto_check" {
			s.AutoCheck = b
		} else {
			s.AutoDownload = b
		}
	case "interval":
		iv, err := ParseInterval(value)
		if err != nil {
			return err
		}
		s.Interval = iv
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}
