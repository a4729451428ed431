package main

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/testutils"
)

// CommandTestSuite serves the mocked radio to every command.
type CommandTestSuite struct {
	testutils.MockRadioSuite

	originalFactory func(*logrus.Logger, int) device.AdapterFactory
	noColor         bool
}

func (s *CommandTestSuite) SetupTest() {
	s.MockRadioSuite.SetupTest()

	s.originalFactory = adapterFactory
	adapterFactory = func(*logrus.Logger, int) device.AdapterFactory {
		return s.Factory()
	}

	s.noColor = color.NoColor
	color.NoColor = true

	scanDuration = 0
	scanFormat = "table"
	watchFighterID = 1
	watchFighterName = ""
	watchWeight = 70
	watchRaw = false
	s.Require().NoError(rootCmd.PersistentFlags().Set("config", ""))
}

// WriteConfig writes a YAML config into a temp dir and returns its path.
func (s *CommandTestSuite) WriteConfig(yaml string) string {
	path := filepath.Join(s.T().TempDir(), "beathard.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func (s *CommandTestSuite) TearDownTest() {
	adapterFactory = s.originalFactory
	color.NoColor = s.noColor
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().String("config", "", "")
	return cmd
}

const shortScan = 50 * time.Millisecond
