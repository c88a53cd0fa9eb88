//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"telegram-drive-relay/cmd"
	"telegram-drive-relay/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	originalContent string
	authorized      bool
	output          bytes.Buffer
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing. Each answer is keyed by a
// fragment of the prompt message; unanswered prompts take their default.
type MockPrompter struct {
	answers [][2]string
}

func NewMockPrompter(answers [][2]string) *MockPrompter {
	return &MockPrompter{answers: answers}
}

func (m *MockPrompter) answer(message string) (string, bool) {
	for _, a := range m.answers {
		if strings.Contains(message, a[0]) {
			return a[1], true
		}
	}
	return "", false
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if v, ok := m.answer(message); ok {
		return v, nil
	}
	return defaultValue, nil
}

func (m *MockPrompter) Password(message string) (string, error) {
	v, _ := m.answer(message)
	return v, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if v, ok := m.answer(message); ok {
		return strings.ToLower(v) == "y", nil
	}
	return defaultValue, nil
}

func (m *MockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	v, ok := m.answer(message)
	if !ok {
		return defaultValue, nil
	}
	for _, o := range options {
		if o == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %v for prompt %q", v, options, message)
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedSetupContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		*testCtx = setupContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config", "config.yaml"),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		// Cleanup temp directory
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^no config file exists for setup$`, testCtx.noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, testCtx.aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I run the setup command with answers:$`, testCtx.iRunTheSetupCommandWithAnswers)
	ctx.Step(`^a config file should exist$`, testCtx.aConfigFileShouldExist)
	ctx.Step(`^the config should have backend "([^"]*)"$`, testCtx.theConfigShouldHaveBackend)
	ctx.Step(`^the config should have folder_id "([^"]*)"$`, testCtx.theConfigShouldHaveFolderID)
	ctx.Step(`^the config should have bucket "([^"]*)"$`, testCtx.theConfigShouldHaveBucket)
	ctx.Step(`^the config should have placement "([^"]*)"$`, testCtx.theConfigShouldHavePlacement)
	ctx.Step(`^the config file should only be readable by its owner$`, testCtx.theConfigFileShouldOnlyBeReadableByItsOwner)
	ctx.Step(`^the Google authorization should have run$`, testCtx.theGoogleAuthorizationShouldHaveRun)
	ctx.Step(`^the Google authorization should not have run$`, testCtx.theGoogleAuthorizationShouldNotHaveRun)
	ctx.Step(`^the setup should fail with "([^"]*)"$`, testCtx.theSetupShouldFailWith)
	ctx.Step(`^the setup should be cancelled$`, testCtx.theSetupShouldBeCancelled)
	ctx.Step(`^the existing config should be unchanged$`, testCtx.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	// Just ensure the config path directory exists but no config file
	return os.MkdirAll(filepath.Dir(s.configPath), 0755)
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}

	content := `telegram:
  token: "original-token"
destination:
  backend: drive
google:
  credentials_file: "original-creds.json"
  folder_id: "original-folder-id"
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0600)
}

func (s *setupContext) iRunTheSetupCommandWithAnswers(table *godog.Table) error {
	var answers [][2]string
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		answers = append(answers, [2]string{row.Cells[0].Value, row.Cells[1].Value})
	}

	authorize := func(ctx context.Context, g config.GoogleConfig, out io.Writer) error {
		s.authorized = true
		return nil
	}

	s.err = cmd.RunSetupWithPrompter(context.Background(), NewMockPrompter(answers), authorize, s.configPath, &s.output)
	return nil
}

func (s *setupContext) loadConfig() (*config.Config, error) {
	if s.err != nil {
		return nil, fmt.Errorf("setup command failed: %w", s.err)
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (s *setupContext) aConfigFileShouldExist() error {
	if s.err != nil {
		return fmt.Errorf("setup command failed: %w", s.err)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", s.configPath)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveBackend(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Destination.Backend != expected {
		return fmt.Errorf("expected backend %q, got %q", expected, cfg.Destination.Backend)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveFolderID(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Google.FolderID != expected {
		return fmt.Errorf("expected folder_id %q, got %q", expected, cfg.Google.FolderID)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveBucket(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.S3.Bucket != expected {
		return fmt.Errorf("expected bucket %q, got %q", expected, cfg.S3.Bucket)
	}
	return nil
}

func (s *setupContext) theConfigShouldHavePlacement(expected string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Destination.Placement != expected {
		return fmt.Errorf("expected placement %q, got %q", expected, cfg.Destination.Placement)
	}
	return nil
}

func (s *setupContext) theConfigFileShouldOnlyBeReadableByItsOwner() error {
	info, err := os.Stat(s.configPath)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		return fmt.Errorf("expected mode 0600, got %v", perm)
	}
	return nil
}

func (s *setupContext) theGoogleAuthorizationShouldHaveRun() error {
	if !s.authorized {
		return fmt.Errorf("expected the OAuth flow to run")
	}
	return nil
}

func (s *setupContext) theGoogleAuthorizationShouldNotHaveRun() error {
	if s.authorized {
		return fmt.Errorf("expected no OAuth flow")
	}
	return nil
}

func (s *setupContext) theSetupShouldFailWith(text string) error {
	if s.err == nil {
		return fmt.Errorf("expected setup to fail")
	}
	if !strings.Contains(s.err.Error(), text) {
		return fmt.Errorf("expected error to contain %q, got: %v", text, s.err)
	}
	return nil
}

func (s *setupContext) theSetupShouldBeCancelled() error {
	if s.err != nil {
		return fmt.Errorf("setup failed instead of cancelling: %w", s.err)
	}
	if !strings.Contains(s.output.String(), "Setup cancelled.") {
		return fmt.Errorf("expected setup to be cancelled, output:\n%s", s.output.String())
	}
	return nil
}

func (s *setupContext) theExistingConfigShouldBeUnchanged() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}
	if string(data) != s.originalContent {
		return fmt.Errorf("config was modified")
	}
	return nil
}
