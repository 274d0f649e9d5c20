package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yaml "github.com/goccy/go-yaml"

	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/utils"
)

// Optional features flip these off from their disabled build variants
var (
	EnablePlutobook = true
	EnableGst       = true
	EnableOmt       = true
)

type Config struct {
	Source   *SourceCfg
	Engine   *EngineCfg
	Sinks    map[string]*SinkCfg
	Api      *ApiCfg
	LogLevel string `yaml:"log_level"`
	Watch    bool
}

func Parse(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", filename, err)
	}
	defer f.Close()

	absFilename, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("somehow, %s is malformed: %w", filename, err)
	}
	ctx := WithBaseDir(context.Background(), filepath.Dir(absFilename))

	m := yaml.NewDecoder(f)
	cfg := &Config{}
	err = m.DecodeContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config and fills in defaults
func (c *Config) Validate() error {
	if c.Source == nil {
		c.Source = &SourceCfg{}
	}
	err := c.Source.Validate()
	if err != nil {
		return fmt.Errorf("source is invalid: %w", err)
	}

	if c.Engine == nil {
		c.Engine = &EngineCfg{}
	}
	err = c.Engine.Validate()
	if err != nil {
		return fmt.Errorf("engine is invalid: %w", err)
	}
	if c.Source.Engine == "plutobook" && !EnablePlutobook {
		return fmt.Errorf("the plutobook engine is not available in this build")
	}

	if len(c.Sinks) < 1 {
		return fmt.Errorf("at least one sink should be defined")
	}
	windows := 0
	for k, v := range c.Sinks {
		err = v.Validate()
		if err != nil {
			return fmt.Errorf("sink %s is invalid: %w", k, err)
		}
		if v.Type == "window" {
			windows++
		}
	}
	if windows > 1 {
		return fmt.Errorf("only one window sink can be defined")
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	_, err = ParseLevel(c.LogLevel)
	return err
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Source:\n")
	b.WriteString(fmt.Sprintf("  %s (%dx%d, %s engine)\n", c.Source.URL, c.Source.Width, c.Source.Height, c.Source.Engine))

	b.WriteString("\nSinks:\n")
	names := make([]string, 0, len(c.Sinks))
	for k := range c.Sinks {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		b.WriteString(fmt.Sprintf("  %s (%s)\n", k, c.Sinks[k].Type))
	}
	return b.String()
}

type Valid interface {
	Validate() error
}

type SourceCfg struct {
	URL            string `yaml:"url"`
	Width          int
	Height         int
	Engine         string
	PumpIntervalMs int `yaml:"pump_interval_ms"`
	// FrameBudgetMB caps the memory held by queued frames, 0 is unlimited
	FrameBudgetMB int `yaml:"frame_budget_mb"`
}

func (s *SourceCfg) Validate() error {
	if s.URL == "" {
		s.URL = "http://www.bbc.co.uk"
	}
	if s.Width == 0 && s.Height == 0 {
		s.Width, s.Height = 1280, 720
	}
	frames := encdec.FrameCfg{Width: s.Width, Height: s.Height}
	err := frames.Validate()
	if err != nil {
		return err
	}

	switch s.Engine {
	case "":
		s.Engine = "cdp"
	case "cdp", "plutobook":
	default:
		return fmt.Errorf("unknown engine %s", s.Engine)
	}

	if s.PumpIntervalMs < 0 {
		return fmt.Errorf("pump_interval_ms must be nonnegative")
	}
	if s.FrameBudgetMB < 0 {
		return fmt.Errorf("frame_budget_mb must be nonnegative")
	}
	return nil
}

type EngineCfg struct {
	DebugPort      *int    `yaml:"debug_port"`
	SubprocessPath string  `yaml:"subprocess_path"`
	BrowserPath    CfgPath `yaml:"browser_path"`
	LogSeverity    string  `yaml:"log_severity"`
	FrameRate      int     `yaml:"frame_rate"`
	Headless       *bool
	// Format is the screencast image format of the cdp engine
	Format string
	// UserStyle is a stylesheet applied by the plutobook engine
	UserStyle CfgPath `yaml:"user_style"`
}

func (e *EngineCfg) Validate() error {
	if e.DebugPort == nil {
		port := 2012
		e.DebugPort = &port
	} else if *e.DebugPort < 0 || *e.DebugPort > 65535 {
		return fmt.Errorf("debug_port %d is out of range", *e.DebugPort)
	}
	if e.SubprocessPath == "" {
		e.SubprocessPath = "webrender-helper"
	}
	if e.LogSeverity == "" {
		e.LogSeverity = "warn"
	}
	_, err := ParseLevel(e.LogSeverity)
	if err != nil {
		return err
	}
	if e.FrameRate == 0 {
		e.FrameRate = 30
	} else if e.FrameRate < 0 {
		return fmt.Errorf("frame_rate must be positive")
	}
	if e.Headless == nil {
		headless := true
		e.Headless = &headless
	}
	switch e.Format {
	case "":
		e.Format = "png"
	case "png", "jpeg":
	default:
		return fmt.Errorf("unknown screencast format %s", e.Format)
	}
	return nil
}

type SinkCfgStub struct {
	Type string
}

type SinkCfg struct {
	SinkCfgStub
	Cfg Valid
}

type FFmpegSinkCfg struct {
	// Cmd is run through bash. {width}, {height}, {framerate} and
	// {pix_fmt} are replaced with the stream's caps.
	Cmd string
}

type WindowSinkCfg struct {
	Width      int
	Height     int
	Title      string
	Background string
	VSync      bool `yaml:"vsync"`
}

type GstSinkCfg struct {
	// Launch is the gst-launch style description of everything after the
	// appsrc, e.g. "videoconvert ! autovideosink"
	Launch string
}

type OmtSinkCfg struct {
	// Name is the OMT source name, defaults to the sink name
	Name    string
	Quality string
}

type NullSinkCfg struct {
	// StopAfter ends the program after that many frames, 0 runs forever
	StopAfter uint64 `yaml:"stop_after"`
}

func (s *SinkCfg) UnmarshalYAML(b []byte) error {
	err := yaml.Unmarshal(b, &s.SinkCfgStub)
	if err != nil {
		return err
	}

	switch s.Type {
	case "ffmpeg_stdin":
		cfg := FFmpegSinkCfg{}
		s.Cfg = &cfg
		return yaml.Unmarshal(b, &cfg)
	case "window":
		cfg := WindowSinkCfg{}
		s.Cfg = &cfg
		return yaml.Unmarshal(b, &cfg)
	case "gstreamer":
		cfg := GstSinkCfg{}
		s.Cfg = &cfg
		return yaml.Unmarshal(b, &cfg)
	case "omt":
		cfg := OmtSinkCfg{}
		s.Cfg = &cfg
		return yaml.Unmarshal(b, &cfg)
	case "discard":
		cfg := NullSinkCfg{}
		s.Cfg = &cfg
		return yaml.Unmarshal(b, &cfg)
	default:
		return fmt.Errorf("unknown sink type: %s", s.Type)
	}
}

func (s *SinkCfg) Validate() error {
	if s.Cfg == nil {
		return fmt.Errorf("sink type must be specified")
	}
	return s.Cfg.Validate()
}

func (s *FFmpegSinkCfg) Validate() error {
	if s.Cmd == "" {
		return fmt.Errorf("ffmpeg cmd must be specified")
	}
	return nil
}

func (s *WindowSinkCfg) Validate() error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("window size must be nonnegative")
	}
	if s.Background != "" && !utils.ColourValidate(s.Background) {
		return fmt.Errorf("%s is not a valid RGBA hex colour", s.Background)
	}
	return nil
}

func (s *GstSinkCfg) Validate() error {
	if !EnableGst {
		return fmt.Errorf("GStreamer support is not available in this build")
	}
	if s.Launch == "" {
		return fmt.Errorf("gstreamer launch line must be specified")
	}
	return nil
}

func (s *OmtSinkCfg) Validate() error {
	if !EnableOmt {
		return fmt.Errorf("OMT support is not available in this build")
	}
	switch s.Quality {
	case "", "default", "low", "medium", "high":
		return nil
	default:
		return fmt.Errorf("unknown OMT quality %s", s.Quality)
	}
}

func (s *NullSinkCfg) Validate() error {
	return nil
}

type ApiCfg struct {
	Bind           string
	EnableProfiler bool `yaml:"enable_profiler"`
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	if err != nil {
		return 0, fmt.Errorf("unknown log level %s", s)
	}
	return l, nil
}
