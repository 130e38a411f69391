package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mmcdole/shelf/internal/app"
	"github.com/mmcdole/shelf/internal/config"
	"github.com/mmcdole/shelf/internal/events"
	"github.com/mmcdole/shelf/internal/log"
)

type commandContext struct {
	configFlag *string
	uidFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	app     *app.App
	logFile io.Closer
}

func newCommandContext(configFlag, uidFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		uidFlag:    uidFlag,
	}
}

func (c *commandContext) configDir() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadConfig(c.configDir())
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		if c.uidFlag != nil && strings.TrimSpace(*c.uidFlag) != "" {
			cfg.Account.UID = strings.TrimSpace(*c.uidFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureApp builds the app once per invocation. A logger that cannot open its
// file falls back to the null logger.
func (c *commandContext) ensureApp() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, closer, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		logger = log.NullLogger()
	} else {
		c.logFile = closer
	}
	logger.Info("starting shelf", "version", Version)

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// apply runs one mutation and turns a false result into an error. The reason
// is taken from the :error event the coordinator publishes; a false without
// one means the request was dropped as a duplicate.
func (c *commandContext) apply(fn func(a *app.App) bool) error {
	a, err := c.ensureApp()
	if err != nil {
		return err
	}

	var failure *events.Event
	sub := a.Bus.Subscribe(events.Filter{}, func(e events.Event) {
		if e.Type.IsError() {
			failure = &e
		}
	})
	defer a.Bus.Unsubscribe(sub.ID)

	if fn(a) {
		return nil
	}
	if failure != nil {
		return errors.New(failure.Error)
	}
	return errors.New("operation was not applied")
}

func (c *commandContext) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.logFile != nil {
		c.logFile.Close()
		c.logFile = nil
	}
	return err
}
