// Package config builds converter.Options for the CLI from defaults, a
// config file, a profile, .env files, the environment and flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/placeholder"
)

const (
	EnvPrefix         = "CYANSCRIPT"
	DefaultConfigName = "cyanscript"
)

// LoadAndValidate loads configuration from all sources, validates it and
// derives absolute paths, the Git diff mode and the TUI setting. When
// prompter is non-nil, a missing input path, software name or version is
// asked for. The returned logger is the one the run should use.
func LoadAndValidate(cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet, prompter Prompter) (converter.Options, *slog.Logger, error) {
	var opts converter.Options
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelFor(verbose)}))

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
			v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults, env and flags")
		} else {
			used := cfgFile
			if used == "" {
				used = DefaultConfigName + ".yaml"
			}
			return opts, tempLogger, fmt.Errorf("%w: error reading config file '%s': %w", converter.ErrConfigValidation, used, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		sub := v.Sub(profileKey)
		if sub == nil {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			return opts, tempLogger, fmt.Errorf("%w: profile '%s' not found in config file '%s'", converter.ErrConfigValidation, profileName, configPath)
		}
		if err := v.MergeConfigMap(sub.AllSettings()); err != nil {
			return opts, tempLogger, fmt.Errorf("%w: error merging profile '%s': %w", converter.ErrConfigValidation, profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	loaded, err := LoadDotEnv(dotEnvDirs()...)
	if err != nil {
		tempLogger.Warn("Failed to read .env file", slog.String("error", err.Error()))
	}
	for _, p := range loaded {
		tempLogger.Debug("Loaded environment file", slog.String("path", p))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("softwareName", EnvPrefix+"_SOFTWARE_NAME")
	_ = v.BindEnv("outputFormat", EnvPrefix+"_OUTPUT_FORMAT")

	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", name))
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
		}
	}

	opts.AppVersion = appVersion
	configFile, profile := opts.ConfigFilePath, opts.ProfileName
	if err := v.Unmarshal(&opts); err != nil {
		return opts, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", converter.ErrConfigValidation, err)
	}
	opts.AppVersion, opts.ConfigFilePath, opts.ProfileName = appVersion, configFile, profile

	if flags.Changed("verbose") {
		opts.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("force") {
		opts.ForceOverwrite, _ = flags.GetBool("force")
	}
	if flags.Changed("no-cache") {
		opts.IgnoreCacheRead, _ = flags.GetBool("no-cache")
	}
	if flags.Changed("clear-cache") {
		opts.ClearCache, _ = flags.GetBool("clear-cache")
	}
	if flags.Changed("value") {
		pairs, _ := flags.GetStringArray("value")
		values, err := parseValues(pairs)
		if err != nil {
			return opts, tempLogger, err
		}
		if opts.Values == nil {
			opts.Values = make(map[string]string, len(values))
		}
		for k, val := range values {
			opts.Values[k] = val
		}
	}

	level := levelFor(opts.Verbose)
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if prompter != nil {
		if err := promptMissing(&opts, prompter); err != nil {
			return opts, logger, err
		}
	}

	if err := validateAndDeriveOptions(&opts, logger, flags); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.Bool("verbose", opts.Verbose),
		slog.String("logLevel", level.String()),
	)
	return opts, logger, nil
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setDefaults seeds viper with the library defaults. Every key read from
// the environment needs a default here, otherwise Unmarshal never sees it.
func setDefaults(v *viper.Viper) {
	d := converter.DefaultOptions()

	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("template", "")
	v.SetDefault("softwareName", "")
	v.SetDefault("version", "")
	v.SetDefault("values", map[string]string{})

	v.SetDefault("forceOverwrite", converter.DefaultForceOverwrite)
	v.SetDefault("verbose", converter.DefaultVerbose)
	v.SetDefault("tuiEnabled", d.TuiEnabled)
	v.SetDefault("onError", string(d.OnErrorMode))
	v.SetDefault("outputFormat", string(d.OutputFormat))
	v.SetDefault("outputName", "")

	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("cache", d.CacheEnabled)

	v.SetDefault("ignore", []string{})
	v.SetDefault("defaultEncoding", "")
	v.SetDefault("languageMappings", map[string]string{})

	doc := d.Document
	v.SetDefault("document.anchor", doc.Anchor)
	v.SetDefault("document.indentUnit", doc.IndentUnit)
	v.SetDefault("document.tableCaptionPattern", doc.TableCaptionPattern)
	v.SetDefault("document.imageCaptionPattern", doc.ImageCaptionPattern)
	v.SetDefault("document.maxImageWidthCm", doc.MaxImageWidthCM)
	v.SetDefault("document.listIndentTwips", doc.ListIndentTwips)
	v.SetDefault("document.stripHeadingNumbers", doc.StripHeadingNumbers)
	v.SetDefault("document.inlineCodeSpacing", doc.InlineCodeSpacing)
	v.SetDefault("document.codeLanguageLabel", doc.CodeLanguageLabel)
	v.SetDefault("document.autoFigureCaption", doc.AutoFigureCaption)
	v.SetDefault("document.frontMatterValues", doc.FrontMatterValues)
	v.SetDefault("document.failOnUnresolved", doc.FailOnUnresolved)

	v.SetDefault("git.diffOnly", d.GitConfig.DiffOnly)
	v.SetDefault("git.sinceRef", d.GitConfig.SinceRef)
	v.SetDefault("gitMetadata", d.GitMetadataEnabled)
}

// parseValues turns key=value pairs into placeholder values.
func parseValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || !placeholder.ValidName(key) {
			return nil, fmt.Errorf("%w: invalid --value '%s', want name=value with a placeholder name", converter.ErrConfigValidation, pair)
		}
		values[key] = val
	}
	return values, nil
}

// promptMissing asks for the input path, software name and version when
// none of the sources provided them.
func promptMissing(opts *converter.Options, prompter Prompter) error {
	questions := []struct {
		label string
		field *string
	}{
		{"Markdown file or directory", &opts.InputPath},
		{"Software name", &opts.SoftwareName},
		{"Version", &opts.Version},
	}
	for _, q := range questions {
		if *q.field != "" {
			continue
		}
		answer, err := prompter.Prompt(q.label)
		if err != nil {
			return err
		}
		*q.field = answer
	}
	return nil
}

// isValidEnumValue checks if a given string value is present in a slice of allowed enum values.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

func validPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	_, err := regexp.Compile(pattern)
	return err
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options and fills in derived fields. Errors wrap converter.ErrConfigValidation.
func validateAndDeriveOptions(opts *converter.Options, logger *slog.Logger, flags *pflag.FlagSet) error {
	fail := func(key string, err error) error {
		logger.Error(err.Error(), slog.String("key", key))
		return err
	}

	if opts.InputPath == "" {
		return fail("input", fmt.Errorf("%w: input path is required (-i, --input)", converter.ErrConfigValidation))
	}
	absInput, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return fail("input", fmt.Errorf("%w: cannot resolve absolute input path '%s': %w", converter.ErrConfigValidation, opts.InputPath, err))
	}
	opts.InputPath = absInput
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fail("input", fmt.Errorf("%w: input path '%s' does not exist", converter.ErrConfigValidation, opts.InputPath))
		}
		return fail("input", fmt.Errorf("%w: cannot access input path '%s': %w", converter.ErrConfigValidation, opts.InputPath, err))
	}
	singleFile := !info.IsDir()
	logger.Debug("Validated input path", slog.String("path", opts.InputPath), slog.Bool("singleFile", singleFile))

	if opts.TemplatePath == "" {
		return fail("template", fmt.Errorf("%w: template is required (-t, --template or %s_TEMPLATE)", converter.ErrConfigValidation, EnvPrefix))
	}
	absTpl, err := filepath.Abs(opts.TemplatePath)
	if err != nil {
		return fail("template", fmt.Errorf("%w: cannot resolve absolute template path '%s': %w", converter.ErrConfigValidation, opts.TemplatePath, err))
	}
	opts.TemplatePath = absTpl
	tplInfo, err := os.Stat(opts.TemplatePath)
	if err != nil {
		return fail("template", fmt.Errorf("%w: template not found: %s", converter.ErrConfigValidation, opts.TemplatePath))
	}
	if tplInfo.IsDir() {
		return fail("template", fmt.Errorf("%w: template path '%s' is a directory, not a file", converter.ErrConfigValidation, opts.TemplatePath))
	}

	if opts.OutputPath == "" {
		opts.OutputPath = "."
	}
	absOutput, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return fail("output", fmt.Errorf("%w: cannot resolve absolute output path '%s': %w", converter.ErrConfigValidation, opts.OutputPath, err))
	}
	opts.OutputPath = absOutput
	if !singleFile && strings.EqualFold(filepath.Ext(opts.OutputPath), ".docx") {
		return fail("output", fmt.Errorf("%w: output '%s' names a document but the input is a directory", converter.ErrConfigValidation, opts.OutputPath))
	}

	allowedOnError := []converter.OnErrorMode{converter.OnErrorContinue, converter.OnErrorStop}
	if !isValidEnumValue(opts.OnErrorMode, allowedOnError) {
		return fail("onError", fmt.Errorf("%w: invalid value '%s' for key 'onError' (flag --onError). Allowed: %v", converter.ErrConfigValidation, opts.OnErrorMode, allowedOnError))
	}
	opts.OutputFormat = converter.OutputFormat(strings.ToLower(string(opts.OutputFormat)))
	allowedOutputFormat := []converter.OutputFormat{converter.OutputFormatText, converter.OutputFormatJSON, converter.OutputFormatYAML, converter.OutputFormatTOML}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		return fail("outputFormat", fmt.Errorf("%w: invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v", converter.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat))
	}
	if opts.Concurrency < 0 {
		return fail("concurrency", fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0", converter.ErrConfigValidation, opts.Concurrency))
	}
	if !placeholder.ValidName(opts.Document.Anchor) {
		return fail("document.anchor", fmt.Errorf("%w: anchor '%s' is not a valid placeholder name", converter.ErrConfigValidation, opts.Document.Anchor))
	}
	if opts.Document.MaxImageWidthCM <= 0 {
		return fail("document.maxImageWidthCm", fmt.Errorf("%w: maxImageWidthCm must be positive, got %g", converter.ErrConfigValidation, opts.Document.MaxImageWidthCM))
	}
	for key, pattern := range map[string]string{
		"document.tableCaptionPattern": opts.Document.TableCaptionPattern,
		"document.imageCaptionPattern": opts.Document.ImageCaptionPattern,
	} {
		if err := validPattern(pattern); err != nil {
			return fail(key, fmt.Errorf("%w: invalid pattern for '%s': %w", converter.ErrConfigValidation, key, err))
		}
	}

	if singleFile && opts.CacheEnabled {
		logger.Debug("Single file input, cache disabled")
		opts.CacheEnabled = false
	}

	opts.GitDiffMode = converter.GitDiffModeNone
	diffOnly := opts.GitConfig.DiffOnly
	if flags.Changed("git-diff-only") {
		diffOnly, _ = flags.GetBool("git-diff-only")
	}
	switch {
	case diffOnly && flags.Changed("git-since"):
		return fail("git", fmt.Errorf("%w: cannot use --git-diff-only and --git-since flags simultaneously", converter.ErrConfigValidation))
	case diffOnly:
		opts.GitDiffMode = converter.GitDiffModeDiffOnly
	case flags.Changed("git-since"):
		if opts.GitConfig.SinceRef == "" {
			return fail("git.sinceRef", fmt.Errorf("%w: flag --git-since requires a non-empty reference (commit/tag/branch)", converter.ErrConfigValidation))
		}
		opts.GitDiffMode = converter.GitDiffModeSince
	}
	if singleFile && opts.GitDiffMode != converter.GitDiffModeNone {
		logger.Warn("Git diff filter ignored for a single file input", slog.String("mode", string(opts.GitDiffMode)))
		opts.GitDiffMode = converter.GitDiffModeNone
	}

	if opts.Verbose {
		opts.TuiEnabled = false
	} else if noTui, _ := flags.GetBool("no-tui"); noTui {
		opts.TuiEnabled = false
	}
	if opts.OutputFormat != converter.OutputFormatText {
		opts.TuiEnabled = false
	}

	logger.Debug("Final derived settings validated",
		slog.Int("concurrency", opts.Concurrency),
		slog.String("gitDiffMode", string(opts.GitDiffMode)),
		slog.Bool("cache", opts.CacheEnabled),
		slog.Bool("tuiEnabledEffective", opts.TuiEnabled),
	)
	return nil
}
