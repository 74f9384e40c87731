package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rancher/repo-sync/internal/git"
	"github.com/rancher/repo-sync/internal/orchestrator"
	"github.com/rancher/repo-sync/internal/release"
	"github.com/rancher/repo-sync/internal/runlog"
)

const (
	// DefaultConfigFile is read from the working directory when present.
	DefaultConfigFile = ".repo-sync.yml"

	defaultPrivateRemote = "private"
	defaultPublicRemote  = "public"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	envPrefix            = "REPO_SYNC_"
)

// Config captures runtime options sourced from flags, REPO_SYNC_* environment
// variables and the optional config file.
type Config struct {
	PrivateRemote  string
	PrivateURL     string
	PublicRemote   string
	PublicURL      string
	Branch         string
	PublicBranch   string
	PublicMode     string
	PublicMessage  string
	PreserveAuthor bool

	DryRun    bool
	Verbose   bool
	LogFile   string
	LogLevel  string
	LogFormat string

	Release ReleaseConfig
}

// ReleaseConfig holds the options of the release subcommand.
type ReleaseConfig struct {
	Bump         string
	Tag          bool
	Since        string
	AllowDirty   bool
	SectionTitle string

	Summarize        bool
	SummaryModel     string
	SummaryBaseURL   string
	SummaryAPIKey    string
	SummaryMaxTokens int

	Push bool

	GitHubRelease   bool
	GitHubToken     string
	GitHubBaseURL   string
	GitHubUploadURL string
}

// fileConfig mirrors .repo-sync.yml.
type fileConfig struct {
	Private struct {
		Remote string `yaml:"remote"`
		URL    string `yaml:"url"`
		Branch string `yaml:"branch"`
	} `yaml:"private"`
	Public struct {
		Remote  string `yaml:"remote"`
		URL     string `yaml:"url"`
		Branch  string `yaml:"branch"`
		Mode    string `yaml:"mode"`
		Message string `yaml:"message"`
	} `yaml:"public"`
	PreserveAuthor *bool `yaml:"preserveAuthor"`
	Log            struct {
		File   string `yaml:"file"`
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func envVars(name string, extra ...string) cli.ValueSourceChain {
	keys := append([]string{envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}, extra...)
	return cli.EnvVars(keys...)
}

// SyncFlags are shared by the root command and, through inheritance, the
// release subcommand.
func SyncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "private-remote", Usage: "name of the private remote (default: private)", Sources: envVars("private-remote")},
		&cli.StringFlag{Name: "private-url", Usage: "URL used to add the private remote when it is missing", Sources: envVars("private-url")},
		&cli.StringFlag{Name: "public-remote", Usage: "name of the public remote (default: public)", Sources: envVars("public-remote")},
		&cli.StringFlag{Name: "public-url", Usage: "URL used to add the public remote when it is missing", Sources: envVars("public-url")},
		&cli.StringFlag{Name: "branch", Usage: "local branch to publish (default: current branch)", Sources: envVars("branch")},
		&cli.StringFlag{Name: "public-branch", Usage: "branch updated on the public remote (default: main)", Sources: envVars("public-branch")},
		&cli.StringFlag{Name: "public-mode", Usage: "cherry-pick or snapshot (default: cherry-pick)", Sources: envVars("public-mode")},
		&cli.StringFlag{Name: "public-message", Usage: "message for synthesized public commits", Sources: envVars("public-message")},
		&cli.BoolFlag{Name: "preserve-author", Usage: "reuse the HEAD author for synthesized public commits", Sources: envVars("preserve-author")},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug output and git command echo", Sources: envVars("verbose")},
		&cli.BoolFlag{Name: "dry-run", Usage: "log pushes and remote additions instead of executing them", Sources: envVars("dry-run")},
		&cli.StringFlag{Name: "log-file", Usage: "run log path (default: " + runlog.DefaultFile + ")", Sources: envVars("log-file")},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (default: info)", Sources: envVars("log-level")},
		&cli.StringFlag{Name: "log-format", Usage: "text or json (default: text)", Sources: envVars("log-format")},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to configuration file", Value: DefaultConfigFile, Sources: envVars("config")},
	}
}

// ReleaseFlags are the flags specific to the release subcommand.
func ReleaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "bump", Usage: "bump package.json version: major, minor, patch or none", Value: string(release.BumpNone), Sources: envVars("bump")},
		&cli.BoolFlag{Name: "tag", Usage: "create a v<version> tag after a version bump", Sources: envVars("tag")},
		&cli.StringFlag{Name: "since", Usage: "start of the release range (default: last tag or root commit)", Sources: envVars("since")},
		&cli.BoolFlag{Name: "allow-dirty", Usage: "release from a working tree with uncommitted changes", Sources: envVars("allow-dirty")},
		&cli.StringFlag{Name: "section-title", Usage: "changelog section title (default: YYYY-MM-DD)", Sources: envVars("section-title")},
		&cli.BoolFlag{Name: "summarize", Usage: "add a model-generated summary to the notes", Sources: envVars("summarize")},
		&cli.StringFlag{Name: "summary-model", Usage: "summary model (default: $OPENAI_SUMMARY_MODEL or gpt-5)", Sources: envVars("summary-model")},
		&cli.StringFlag{Name: "summary-base-url", Usage: "OpenAI-compatible base URL", Sources: envVars("summary-base-url")},
		&cli.StringFlag{Name: "summary-api-key", Usage: "API key for the summary provider", Sources: envVars("summary-api-key")},
		&cli.IntFlag{Name: "summary-max-tokens", Usage: "maximum summary completion tokens", Value: release.DefaultSummaryMaxTokens, Sources: envVars("summary-max-tokens")},
		&cli.BoolFlag{Name: "push", Usage: "sync to the private and public remotes after the release commit", Sources: envVars("push")},
		&cli.BoolFlag{Name: "github-release", Usage: "create a GitHub release on the public repository", Sources: envVars("github-release")},
		&cli.StringFlag{Name: "github-token", Usage: "GitHub token for --github-release", Sources: envVars("github-token", "GITHUB_TOKEN")},
		&cli.StringFlag{Name: "github-base-url", Usage: "GitHub Enterprise API URL", Sources: envVars("github-base-url")},
		&cli.StringFlag{Name: "github-upload-url", Usage: "GitHub Enterprise upload URL", Sources: envVars("github-upload-url")},
	}
}

// ConfigFromCommand resolves the sync configuration: flags and environment
// first, then the config file, then built-in defaults.
func ConfigFromCommand(cmd *cli.Command) (Config, error) {
	path := cmd.String("config")
	file, err := loadConfigFile(path, cmd.IsSet("config"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PrivateRemote:  pick(cmd, "private-remote", file.Private.Remote, defaultPrivateRemote),
		PrivateURL:     pick(cmd, "private-url", file.Private.URL, ""),
		PublicRemote:   pick(cmd, "public-remote", file.Public.Remote, defaultPublicRemote),
		PublicURL:      pick(cmd, "public-url", file.Public.URL, ""),
		Branch:         pick(cmd, "branch", file.Private.Branch, ""),
		PublicBranch:   pick(cmd, "public-branch", file.Public.Branch, git.DefaultBranch),
		PublicMode:     pick(cmd, "public-mode", file.Public.Mode, string(orchestrator.ModeCherryPick)),
		PublicMessage:  pick(cmd, "public-message", file.Public.Message, ""),
		PreserveAuthor: pickBool(cmd, "preserve-author", file.PreserveAuthor),
		DryRun:         cmd.Bool("dry-run"),
		Verbose:        cmd.Bool("verbose"),
		LogFile:        pick(cmd, "log-file", file.Log.File, runlog.DefaultFile),
		LogLevel:       pick(cmd, "log-level", file.Log.Level, defaultLogLevel),
		LogFormat:      pick(cmd, "log-format", file.Log.Format, defaultLogFormat),
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReleaseConfigFromCommand resolves the sync configuration plus the release
// subcommand options.
func ReleaseConfigFromCommand(cmd *cli.Command) (Config, error) {
	cfg, err := ConfigFromCommand(cmd)
	if err != nil {
		return Config{}, err
	}

	cfg.Release = ReleaseConfig{
		Bump:             strings.TrimSpace(cmd.String("bump")),
		Tag:              cmd.Bool("tag"),
		Since:            strings.TrimSpace(cmd.String("since")),
		AllowDirty:       cmd.Bool("allow-dirty"),
		SectionTitle:     strings.TrimSpace(cmd.String("section-title")),
		Summarize:        cmd.Bool("summarize"),
		SummaryModel:     strings.TrimSpace(cmd.String("summary-model")),
		SummaryBaseURL:   strings.TrimSpace(cmd.String("summary-base-url")),
		SummaryAPIKey:    strings.TrimSpace(cmd.String("summary-api-key")),
		SummaryMaxTokens: cmd.Int("summary-max-tokens"),
		Push:             cmd.Bool("push"),
		GitHubRelease:    cmd.Bool("github-release"),
		GitHubToken:      strings.TrimSpace(cmd.String("github-token")),
		GitHubBaseURL:    strings.TrimSpace(cmd.String("github-base-url")),
		GitHubUploadURL:  strings.TrimSpace(cmd.String("github-upload-url")),
	}

	if err := cfg.Release.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func pick(cmd *cli.Command, name, fromFile, fallback string) string {
	if cmd.IsSet(name) {
		return strings.TrimSpace(cmd.String(name))
	}
	if v := strings.TrimSpace(fromFile); v != "" {
		return v
	}
	return fallback
}

func pickBool(cmd *cli.Command, name string, fromFile *bool) bool {
	if cmd.IsSet(name) || fromFile == nil {
		return cmd.Bool(name)
	}
	return *fromFile
}

// loadConfigFile reads the YAML config. A missing file is only an error when
// it was named explicitly.
func loadConfigFile(path string, explicit bool) (fileConfig, error) {
	var file fileConfig

	path = strings.TrimSpace(path)
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return file, nil
	}
	if err != nil {
		return file, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

// normalize applies defaults and performs validation.
func (c *Config) normalize() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	if c.PrivateRemote == "" {
		c.PrivateRemote = defaultPrivateRemote
	}
	if c.PublicRemote == "" {
		c.PublicRemote = defaultPublicRemote
	}
	if c.PublicBranch == "" {
		c.PublicBranch = git.DefaultBranch
	}
	if c.LogFile == "" {
		c.LogFile = runlog.DefaultFile
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}

	mode, err := orchestrator.ParsePublicMode(c.PublicMode)
	if err != nil {
		return err
	}
	c.PublicMode = string(mode)

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[c.LogFormat]; !ok {
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	if c.Verbose {
		c.LogLevel = "debug"
	}

	return nil
}

func (r *ReleaseConfig) validate() error {
	bump, err := release.ParseBumpKind(r.Bump)
	if err != nil {
		return err
	}
	r.Bump = string(bump)

	if r.SummaryMaxTokens < 0 {
		return fmt.Errorf("summary max tokens must not be negative")
	}

	if r.GitHubRelease && r.GitHubToken == "" {
		return fmt.Errorf("github token is required for --github-release (set --github-token or GITHUB_TOKEN)")
	}

	if (r.GitHubBaseURL == "") != (r.GitHubUploadURL == "") {
		return fmt.Errorf("--github-base-url and --github-upload-url must both be set for GitHub Enterprise")
	}

	return nil
}

func (c Config) orchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		PrivateRemote:  c.PrivateRemote,
		PrivateURL:     c.PrivateURL,
		PublicRemote:   c.PublicRemote,
		PublicURL:      c.PublicURL,
		Branch:         c.Branch,
		PublicBranch:   c.PublicBranch,
		PublicMode:     orchestrator.PublicMode(c.PublicMode),
		PublicMessage:  c.PublicMessage,
		PreserveAuthor: c.PreserveAuthor,
		DryRun:         c.DryRun,
	}
}

func (c Config) releaseOptions() release.Options {
	return release.Options{
		Bump:         release.BumpKind(c.Release.Bump),
		Tag:          c.Release.Tag,
		Since:        c.Release.Since,
		AllowDirty:   c.Release.AllowDirty,
		SectionTitle: c.Release.SectionTitle,
		Summarize:    c.Release.Summarize,
		Provider: release.ProviderOptions{
			Model:   c.Release.SummaryModel,
			BaseURL: c.Release.SummaryBaseURL,
			APIKey:  c.Release.SummaryAPIKey,
		},
		SummaryMaxTokens: c.Release.SummaryMaxTokens,
	}
}
