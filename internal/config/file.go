package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML representation of the full configuration surface.
type File struct {
	CommandChar       string   `yaml:"command_char"`
	Aliases           []string `yaml:"aliases"`
	AutoReconnect     *bool    `yaml:"auto_reconnect"`
	ReconnectAttempts *int     `yaml:"reconnect_attempts"`
	ReconnectDelay    string   `yaml:"reconnect_delay"`
	UseNotify         *bool    `yaml:"use_notify"`
	NotifyDelay       string   `yaml:"notify_delay"`
	QueueInterval     string   `yaml:"queue_interval"`
	AutoUserhost      *bool    `yaml:"auto_userhost"`
	IgnoreList        []string `yaml:"ignore_list"`

	Identities   []Identity            `yaml:"identities"`
	ServerGroups []ServerGroupSettings `yaml:"server_groups"`
}

// Load reads and parses a YAML configuration file into Preferences.
func Load(path string) (*Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return file.Preferences()
}

// Preferences converts the parsed file into a Preferences object with
// defaults filled in.
func (f *File) Preferences() (*Preferences, error) {
	prefs := NewPreferences()

	if f.CommandChar != "" {
		prefs.CommandChar = f.CommandChar
	}
	prefs.Aliases = f.Aliases
	if f.AutoReconnect != nil {
		prefs.AutoReconnect = *f.AutoReconnect
	}
	if f.ReconnectAttempts != nil {
		prefs.ReconnectAttempts = *f.ReconnectAttempts
	}
	if f.UseNotify != nil {
		prefs.UseNotify = *f.UseNotify
	}
	if f.AutoUserhost != nil {
		prefs.AutoUserhost = *f.AutoUserhost
	}

	var err error
	if prefs.ReconnectDelay, err = parseDuration(f.ReconnectDelay, prefs.ReconnectDelay); err != nil {
		return nil, fmt.Errorf("reconnect_delay: %w", err)
	}
	if prefs.NotifyDelay, err = parseDuration(f.NotifyDelay, prefs.NotifyDelay); err != nil {
		return nil, fmt.Errorf("notify_delay: %w", err)
	}
	if prefs.QueueInterval, err = parseDuration(f.QueueInterval, prefs.QueueInterval); err != nil {
		return nil, fmt.Errorf("queue_interval: %w", err)
	}

	for _, pattern := range f.IgnoreList {
		prefs.AddIgnore(pattern)
	}

	for i := range f.Identities {
		identity := f.Identities[i]
		prefs.AddIdentity(&identity)
	}

	for i := range f.ServerGroups {
		group := f.ServerGroups[i]
		for j := range group.ServerList {
			if group.ServerList[j].Port == 0 {
				if group.ServerList[j].SSL {
					group.ServerList[j].Port = 6697
				} else {
					group.ServerList[j].Port = 6667
				}
			}
		}
		prefs.AddServerGroup(&group)
	}

	return prefs, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	return d, nil
}
