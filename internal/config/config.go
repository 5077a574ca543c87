package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeBatch  = "batch"
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Log formats
	LogFormatConsole = "console"
	LogFormatJSON    = "json"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = LogFormatConsole
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultOutputName  = "Control Copies.pdf"
	DefaultDelimiter   = ","

	// EnvPrefix is prepended to every environment variable, e.g. PDF_BATCH_LOG_LEVEL
	EnvPrefix = "PDF_BATCH"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// ErrVersionRequested is returned by LoadFromFlags when --version was passed
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the batch filler
type Config struct {
	// Run mode
	Mode string // "batch", "stdio" or "server"
	Host string
	Port int

	// Batch inputs and outputs
	Template   string // form template PDF
	Input      string // delimited rows, one document per row
	Output     string // merged artifact path; defaults to Directory/OutputName
	OutputName string
	Directory  string // working directory; stdio and server paths must stay inside it
	Delimiter  string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum template and input size in bytes
	Progress    bool  // progress bar in batch mode
	Verify      bool  // re-open the merged artifact and check its page count
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:        ModeBatch,
		Host:        DefaultHost,
		Port:        DefaultPort,
		OutputName:  DefaultOutputName,
		Directory:   currentDir,
		Delimiter:   DefaultDelimiter,
		Version:     "1.0.0",
		ServerName:  "pdf-batch-fill",
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		MaxFileSize: DefaultMaxFileSize,
		Progress:    true,
		Verify:      true,
	}
}

// LoadFromFlags parses command line flags and environment variables and
// returns a validated configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var flagNames = []string{
	"mode", "host", "port", "template", "input", "output", "output-name", "dir",
	"delimiter", "log-level", "log-format", "max-file-size", "progress", "verify",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("template", cfg.Template)
	viper.SetDefault("input", cfg.Input)
	viper.SetDefault("output", cfg.Output)
	viper.SetDefault("output-name", cfg.OutputName)
	viper.SetDefault("dir", cfg.Directory)
	viper.SetDefault("delimiter", cfg.Delimiter)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("log-format", cfg.LogFormat)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("progress", cfg.Progress)
	viper.SetDefault("verify", cfg.Verify)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'batch' to fill once and exit, 'stdio' for MCP standard I/O, 'server' for HTTP")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.StringP("template", "t", cfg.Template, "Form template PDF")
	pflag.StringP("input", "i", cfg.Input, "Delimited input file, header row first")
	pflag.StringP("output", "o", cfg.Output, "Merged output path (default: <dir>/<output-name>)")
	pflag.String("output-name", cfg.OutputName, "Merged output file name")
	pflag.String("dir", cfg.Directory, "Working directory")
	pflag.String("delimiter", cfg.Delimiter, "Input field delimiter")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("log-format", cfg.LogFormat, "Log format (console, json)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum template and input size in bytes")
	pflag.Bool("progress", cfg.Progress, "Show a progress bar (batch mode only)")
	pflag.Bool("verify", cfg.Verify, "Re-open the merged output and check its page count")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Batch Fill - fill a PDF form once per input row and merge the results\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -t form.pdf -i clients.csv                  "+
			"# writes ./Control Copies.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -t form.pdf -i clients.tsv --delimiter='\\t' -o out.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/work            # MCP tools\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server -t form.pdf --port=8081       # HTTP API\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, name := range flagNames {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", EnvPrefix, strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Template = viper.GetString("template")
	cfg.Input = viper.GetString("input")
	cfg.Output = viper.GetString("output")
	cfg.OutputName = viper.GetString("output-name")
	cfg.Directory = viper.GetString("dir")
	cfg.Delimiter = unescapeDelimiter(viper.GetString("delimiter"))
	cfg.LogLevel = viper.GetString("log-level")
	cfg.LogFormat = viper.GetString("log-format")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.Progress = viper.GetBool("progress")
	cfg.Verify = viper.GetBool("verify")
}

func unescapeDelimiter(d string) string {
	switch d {
	case `\t`, "tab":
		return "\t"
	case "semicolon":
		return ";"
	case "pipe":
		return "|"
	}
	return d
}

func (c *Config) expandPaths() error {
	if c.Directory != "" {
		abs, err := filepath.Abs(c.Directory)
		if err != nil {
			return fmt.Errorf("cannot resolve directory %s: %w", c.Directory, err)
		}
		c.Directory = abs
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeBatch, ModeStdio, ModeServer:
	default:
		return errors.New("mode must be one of 'batch', 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Mode == ModeBatch {
		if c.Template == "" {
			return errors.New("template is required in batch mode")
		}
		if c.Input == "" {
			return errors.New("input is required in batch mode")
		}
	}
	if c.Mode == ModeServer && c.Template == "" {
		return errors.New("template is required in server mode")
	}

	if c.Directory == "" {
		return errors.New("directory cannot be empty")
	}
	if _, err := os.Stat(c.Directory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.Directory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", c.Directory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", c.Directory, err)
	}

	if c.OutputName == "" || filepath.Base(c.OutputName) != c.OutputName {
		return fmt.Errorf("invalid output name: %q", c.OutputName)
	}

	if _, err := ParseDelimiter(c.Delimiter); err != nil {
		return err
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != LogFormatConsole && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid log format: %s (must be one of: console, json)", c.LogFormat)
	}

	return nil
}

// ParseDelimiter converts a delimiter setting to the rune the input parser
// splits on. The names tab, semicolon and pipe and the escape \t are accepted.
func ParseDelimiter(d string) (rune, error) {
	d = unescapeDelimiter(d)
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter: %q", d)
	}
	return r, nil
}

// DelimiterRune returns the input delimiter as a rune
func (c *Config) DelimiterRune() rune {
	r, _ := ParseDelimiter(c.Delimiter)
	return r
}

// OutputPath returns where the merged artifact is written
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(c.Directory, c.OutputName)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Template: %s, Input: %s, Output: %s, Directory: %s, "+
		"Host: %s, Port: %d, LogLevel: %s, LogFormat: %s, MaxFileSize: %d}",
		c.Mode, c.Template, c.Input, c.OutputPath(), c.Directory,
		c.Host, c.Port, c.LogLevel, c.LogFormat, c.MaxFileSize)
}

// IsBatchMode returns true for a one-shot CLI run
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}

// IsServerMode returns true if running as an HTTP server
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if running as an MCP stdio server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
