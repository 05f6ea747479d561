package main

import (
	"strings"
	"sync"

	"github.com/timmy/vidnotes/internal/config"
	"github.com/timmy/vidnotes/internal/repository"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) artifacts() (*repository.ArtifactRepository, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return repository.NewArtifactRepository(cfg.Paths.Transcripts, cfg.Paths.Notes)
}

func (c *commandContext) settings() (*config.SettingsStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return config.NewSettingsStore(cfg.Paths.SettingsFile), nil
}
