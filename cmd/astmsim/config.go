package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openlis/astmsim/generator"
)

// settings is the resolved runtime configuration. Values are layered in
// ascending precedence: built-in defaults, then the YAML config file, then
// environment variables, then flags given on the command line.
type settings struct {
	Port            int    `yaml:"port"`
	AnalyzerType    string `yaml:"analyzer_type"`
	ResponseDelayMS int    `yaml:"response_delay_ms"`
	TemplatesDir    string `yaml:"templates_dir"`
	MaxSessions     int    `yaml:"max_sessions"`
	APIPort         int    `yaml:"api_port"`
	ForwardURL      string `yaml:"forward_url"`
}

func (s *settings) responseDelay() time.Duration {
	return time.Duration(s.ResponseDelayMS) * time.Millisecond
}

// resolveSettings layers the configuration sources for the command being
// run. The config file is only consulted when --config names one, and a
// missing named file is an error rather than a silent fallback.
func resolveSettings(cmd *cobra.Command) (*settings, error) {
	s := &settings{
		Port:            defaultPort,
		AnalyzerType:    defaultAnalyzerType,
		ResponseDelayMS: defaultResponseDelay,
	}

	if flagConfigFile != "" {
		data, err := os.ReadFile(flagConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", flagConfigFile, err)
		}
	}

	if err := applyEnv(s); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		s.Port = flagPort
	}
	if flags.Changed("analyzer-type") {
		s.AnalyzerType = flagAnalyzerType
	}
	if flags.Changed("response-delay") {
		s.ResponseDelayMS = flagResponseDelay
	}
	if flags.Changed("templates") {
		s.TemplatesDir = flagTemplatesDir
	}

	return s, nil
}

func applyEnv(s *settings) error {
	if v := os.Getenv("ASTM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ASTM_PORT %q: %w", v, err)
		}
		s.Port = port
	}
	if v := os.Getenv("ANALYZER_TYPE"); v != "" {
		s.AnalyzerType = v
	}
	if v := os.Getenv("RESPONSE_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RESPONSE_DELAY_MS %q: %w", v, err)
		}
		s.ResponseDelayMS = ms
	}

	return nil
}

// generatorOptions builds the options for a seeded generator run. A zero
// seed keeps time-based randomness; a fixed seed also pins the clock to the
// start of the run so every message of the run shares one timestamp base.
func generatorOptions(seed int64) []generator.Option {
	if seed == 0 {
		return nil
	}

	now := time.Now()
	return []generator.Option{
		generator.WithSeed(seed),
		generator.WithNow(func() time.Time { return now }),
	}
}
