package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"notehub/internal/config"
	"notehub/internal/credentials"
	"notehub/internal/utils"
)

// Version information, set at build time
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds application configuration
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string // Path to config.yaml (for testing)

	// Overrides for testing
	Keyring credentials.Keyring
	Getenv  func(string) string
	Stdin   io.Reader

	in io.Reader
}

func (c *Config) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

// input returns stdin wrapped for line-by-line prompting. The same reader is
// returned for the life of the command.
func (c *Config) input() io.Reader {
	if c.in == nil {
		c.in = &lineReader{r: bufio.NewReader(c.stdin())}
	}
	return c.in
}

func (c *Config) credentialManager() *credentials.Manager {
	var opts []credentials.ManagerOption
	if c.Keyring != nil {
		opts = append(opts, credentials.WithKeyring(c.Keyring))
	}
	if c.Getenv != nil {
		opts = append(opts, credentials.WithGetenv(c.Getenv))
	}
	return credentials.NewManager(opts...)
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewNoteHub(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		err = utils.SuggestFor(err)
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg != nil && cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewNoteHub creates the root command with injectable IO
func NewNoteHub(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "notehub",
		Short:   "A client for the NoteHub notes API",
		Long:    "notehub lists, searches, creates and deletes notes stored in a remote NoteHub collection.\nRun 'notehub tui' for the interactive interface.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
				cfg.NoPrompt = true
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Verbose = true
			}
			utils.SetVerboseMode(cfg.Verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("notehub version {{.Version}}\n")

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/notehub/config.yaml)")

	cmd.AddCommand(newListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newShowCmd(stdout, cfg))
	cmd.AddCommand(newCreateCmd(stdout, cfg))
	cmd.AddCommand(newDeleteCmd(stdout, cfg))
	cmd.AddCommand(newTUICmd(stderr, cfg))
	cmd.AddCommand(newCredentialsCmd(stdout, stderr, cfg))
	cmd.AddCommand(newConfigCmd(stdout, cfg))
	cmd.AddCommand(newNotificationCmd(stdout, cfg))
	cmd.AddCommand(newCacheCmd(stdout, cfg))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// resolveConfigPath picks --config, then Config.ConfigPath, then the XDG default
func resolveConfigPath(cmd *cobra.Command, cfg *Config) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.ExpandPath(path)
	}
	if cfg.ConfigPath != "" {
		return cfg.ConfigPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads and validates config.yaml and applies the global flags to it
func loadConfig(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	path := resolveConfigPath(cmd, cfg)
	appCfg, err := config.Load(path)
	if err != nil {
		return nil, utils.WrapWithSuggestion(err, fmt.Sprintf("Fix or remove %s", path))
	}
	if err := appCfg.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, fmt.Sprintf("Edit %s or run 'notehub config validate'", path))
	}

	outputFormat := cfg.OutputFormat
	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		outputFormat = "json"
	}
	appCfg.ApplyFlags(cfg.NoPrompt, outputFormat)
	if appCfg.NoPrompt {
		cfg.NoPrompt = true
	}
	return appCfg, nil
}

// wantsJSON reports whether output should be JSON, from --json or output_format
func wantsJSON(cmd *cobra.Command, appCfg *config.Config) bool {
	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		return true
	}
	return appCfg != nil && appCfg.OutputFormat == "json"
}

// printResult emits the result code in no-prompt text mode
func printResult(stdout io.Writer, cfg *Config, code string) {
	if cfg != nil && cfg.NoPrompt {
		_, _ = fmt.Fprintln(stdout, code)
	}
}

type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
	Result     string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}
	var withSuggestion *utils.ErrorWithSuggestion
	if errors.As(err, &withSuggestion) {
		response.Error = withSuggestion.Err.Error()
		response.Suggestion = withSuggestion.GetSuggestion()
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

// writeJSON marshals v as a single line of JSON
func writeJSON(stdout io.Writer, v interface{}) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// newVersionCmd creates the 'version' subcommand
func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return writeJSON(stdout, map[string]string{
					"version":    Version,
					"commit":     Commit,
					"build_date": BuildDate,
				})
			}
			_, _ = fmt.Fprintf(stdout, "notehub\n")
			_, _ = fmt.Fprintf(stdout, "Version: %s\n", Version)
			_, _ = fmt.Fprintf(stdout, "Commit: %s\n", Commit)
			_, _ = fmt.Fprintf(stdout, "Built: %s\n", BuildDate)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
