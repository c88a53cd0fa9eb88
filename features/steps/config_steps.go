//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"telegram-drive-relay/cmd"
	"telegram-drive-relay/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	tempDir    string
	configPath string
	cfg        *config.Config
	loadErr    error
	output     bytes.Buffer
	savedEnv   map[string]*string
}

// SharedConfigContext is reset after each scenario
var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		testCtx.restoreEnv()
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		*testCtx = configContext{}
		return c, nil
	})

	ctx.Step(`^a configuration file with:$`, testCtx.aConfigurationFileWith)
	ctx.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)
	ctx.Step(`^I resolve the configuration$`, testCtx.iResolveTheConfiguration)
	ctx.Step(`^the configuration should be valid$`, testCtx.theConfigurationShouldBeValid)
	ctx.Step(`^the maximum file size should be (\d+)$`, testCtx.theMaximumFileSizeShouldBe)
	ctx.Step(`^the progress interval should be "([^"]*)"$`, testCtx.theProgressIntervalShouldBe)
	ctx.Step(`^the Google folder ID should be "([^"]*)"$`, testCtx.theGoogleFolderIDShouldBe)
	ctx.Step(`^I should receive a configuration error mentioning "([^"]*)"$`, testCtx.iShouldReceiveAConfigurationErrorMentioning)
	ctx.Step(`^I show the configuration$`, testCtx.iShowTheConfiguration)
	ctx.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	ctx.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
}

func (c *configContext) aConfigurationFileWith(doc *godog.DocString) error {
	dir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		return err
	}
	c.tempDir = dir
	c.configPath = filepath.Join(dir, "config.yaml")
	return os.WriteFile(c.configPath, []byte(doc.Content), 0600)
}

func (c *configContext) theEnvironmentVariableIs(key, value string) error {
	if c.savedEnv == nil {
		c.savedEnv = make(map[string]*string)
	}
	if _, saved := c.savedEnv[key]; !saved {
		if prev, ok := os.LookupEnv(key); ok {
			c.savedEnv[key] = &prev
		} else {
			c.savedEnv[key] = nil
		}
	}
	return os.Setenv(key, value)
}

func (c *configContext) restoreEnv() {
	for key, prev := range c.savedEnv {
		if prev == nil {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, *prev)
		}
	}
}

func (c *configContext) iResolveTheConfiguration() error {
	c.cfg, c.loadErr = config.Resolve(c.configPath)
	return nil
}

func (c *configContext) theConfigurationShouldBeValid() error {
	if c.loadErr != nil {
		return fmt.Errorf("expected a valid configuration, got: %w", c.loadErr)
	}
	return nil
}

func (c *configContext) theMaximumFileSizeShouldBe(expected int64) error {
	if c.cfg == nil {
		return fmt.Errorf("configuration not loaded: %v", c.loadErr)
	}
	if c.cfg.Transfer.MaxFileSize != expected {
		return fmt.Errorf("expected max_file_size %d, got %d", expected, c.cfg.Transfer.MaxFileSize)
	}
	return nil
}

func (c *configContext) theProgressIntervalShouldBe(expected string) error {
	want, err := time.ParseDuration(expected)
	if err != nil {
		return err
	}
	if c.cfg == nil {
		return fmt.Errorf("configuration not loaded: %v", c.loadErr)
	}
	if c.cfg.Transfer.ProgressInterval != want {
		return fmt.Errorf("expected progress_interval %v, got %v", want, c.cfg.Transfer.ProgressInterval)
	}
	return nil
}

func (c *configContext) theGoogleFolderIDShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("configuration not loaded: %v", c.loadErr)
	}
	if c.cfg.Google.FolderID != expected {
		return fmt.Errorf("expected folder_id %q, got %q", expected, c.cfg.Google.FolderID)
	}
	return nil
}

func (c *configContext) iShouldReceiveAConfigurationErrorMentioning(text string) error {
	if c.loadErr == nil {
		return fmt.Errorf("expected a configuration error, got none")
	}
	if !strings.Contains(c.loadErr.Error(), text) {
		return fmt.Errorf("expected error to mention %q, got: %v", text, c.loadErr)
	}
	return nil
}

func (c *configContext) iShowTheConfiguration() error {
	if c.cfg == nil {
		return fmt.Errorf("configuration not loaded: %v", c.loadErr)
	}
	return cmd.RunConfigShowWithDependencies(c.cfg, &c.output)
}

func (c *configContext) theOutputShouldContain(text string) error {
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, c.output.String())
	}
	return nil
}

func (c *configContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(c.output.String(), text) {
		return fmt.Errorf("expected output not to contain %q, got:\n%s", text, c.output.String())
	}
	return nil
}
