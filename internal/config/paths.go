package config

import (
	"os"
	"path/filepath"
)

// Everything autodev persists lives under one data directory, by default
// ~/.autodev. AUTODEV_PATH moves it.
const (
	dataDirEnv  = "AUTODEV_PATH"
	dataDirName = ".autodev"
)

// AutodevPath returns the data directory.
func AutodevPath() string {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, dataDirName)
	}
	return dataDirName
}

func inDataDir(elem ...string) string {
	return filepath.Join(append([]string{AutodevPath()}, elem...)...)
}

func ConfigPath() string    { return inDataDir("config.jsonc") }
func DotenvPath() string    { return inDataDir(".env") }
func SessionsPath() string  { return inDataDir("sessions") }
func AgentsPath() string    { return inDataDir("agents") }
func LogsPath() string      { return inDataDir("logs") }
func HeartbeatPath() string { return inDataDir("heartbeat.json") }
