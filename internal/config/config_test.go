package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	home string
}

func (s *ConfigSuite) SetupTest() {
	s.home = s.T().TempDir()
	s.T().Setenv("HOME", s.home)
	for _, key := range []string{
		"HOOKTRAIL_HISTORY_ROOT",
		"HOOKTRAIL_LOG_ROOT",
		"HOOKTRAIL_STATE_PATH",
		"HOOKTRAIL_RULES_PATH",
		"HOOKTRAIL_TRANSCRIPT_DIRS",
		"HOOKTRAIL_RATE_LIMIT_MAX",
		"HOOKTRAIL_RATE_LIMIT_WINDOW",
		"HOOKTRAIL_WORKER_PORT",
	} {
		s.T().Setenv(key, "")
	}

	cachedMu.Lock()
	cached = nil
	cachedMu.Unlock()
}

func (s *ConfigSuite) writeSettings(content string) {
	require.NoError(s.T(), os.MkdirAll(DataDir(), 0750))
	require.NoError(s.T(), os.WriteFile(SettingsPath(), []byte(content), 0600))
}

func (s *ConfigSuite) TestDefaults() {
	cfg := Default()

	assert.Equal(s.T(), filepath.Join(s.home, ".hooktrail", "history"), cfg.HistoryRoot)
	assert.Equal(s.T(), filepath.Join(s.home, ".hooktrail", "logs"), cfg.LogRoot)
	assert.Equal(s.T(), filepath.Join(s.home, ".hooktrail", "state.db"), cfg.StatePath)
	assert.Equal(s.T(), DefaultRateLimitMax, cfg.RateLimitMax)
	assert.Equal(s.T(), DefaultRateLimitWindow, cfg.RateLimitWindowSec)
	assert.Equal(s.T(), DefaultWorkerPort, cfg.WorkerPort)
	require.Len(s.T(), cfg.AllowedTranscriptDirs, 2)
	for _, dir := range cfg.AllowedTranscriptDirs {
		assert.True(s.T(), filepath.IsAbs(dir))
	}
}

func (s *ConfigSuite) TestLoadWithoutSettingsFile() {
	cfg, err := Load()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), Default(), cfg)
}

func (s *ConfigSuite) TestLoadSettingsFile() {
	s.writeSettings(`{
		"HOOKTRAIL_HISTORY_ROOT": "/srv/hooktrail/history",
		"HOOKTRAIL_RATE_LIMIT_MAX": 25,
		"HOOKTRAIL_TRANSCRIPT_DIRS": "/a, /b,,/c"
	}`)

	cfg, err := Load()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "/srv/hooktrail/history", cfg.HistoryRoot)
	assert.Equal(s.T(), 25, cfg.RateLimitMax)
	assert.Equal(s.T(), []string{"/a", "/b", "/c"}, cfg.AllowedTranscriptDirs)
	// Untouched keys keep their defaults
	assert.Equal(s.T(), Default().LogRoot, cfg.LogRoot)
}

func (s *ConfigSuite) TestLoadMalformedSettingsFile() {
	s.writeSettings(`{not json`)

	cfg, err := Load()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), Default(), cfg)
}

func (s *ConfigSuite) TestEnvOverridesSettings() {
	s.writeSettings(`{"HOOKTRAIL_HISTORY_ROOT": "/from/settings"}`)
	s.T().Setenv("HOOKTRAIL_HISTORY_ROOT", "/from/env")
	s.T().Setenv("HOOKTRAIL_WORKER_PORT", "40123")
	s.T().Setenv("HOOKTRAIL_RATE_LIMIT_WINDOW", "120")

	cfg, err := Load()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "/from/env", cfg.HistoryRoot)
	assert.Equal(s.T(), 40123, cfg.WorkerPort)
	assert.Equal(s.T(), 120, cfg.RateLimitWindowSec)
}

func (s *ConfigSuite) TestInvalidNumbersIgnored() {
	s.writeSettings(`{"HOOKTRAIL_RATE_LIMIT_MAX": -5, "HOOKTRAIL_WORKER_PORT": "nope"}`)
	s.T().Setenv("HOOKTRAIL_RATE_LIMIT_MAX", "zero")

	cfg, err := Load()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), DefaultRateLimitMax, cfg.RateLimitMax)
	assert.Equal(s.T(), DefaultWorkerPort, cfg.WorkerPort)
}

func (s *ConfigSuite) TestGetCaches() {
	first := Get()
	s.T().Setenv("HOOKTRAIL_HISTORY_ROOT", "/changed/after/first/get")
	second := Get()
	assert.Same(s.T(), first, second)
}

func (s *ConfigSuite) TestEnsureDataDir() {
	require.NoError(s.T(), EnsureDataDir())

	cfg := Get()
	for _, dir := range []string{DataDir(), cfg.HistoryRoot, cfg.LogRoot} {
		info, err := os.Stat(dir)
		require.NoError(s.T(), err)
		assert.True(s.T(), info.IsDir())
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTrim(" a , b "))
	assert.Empty(t, splitTrim(",,  ,"))
	assert.Equal(t, []string{"one"}, splitTrim("one"))
}
