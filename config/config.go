// Package config loads pdfcompose settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/pdfcompose/backend"
	"github.com/georgepadayatti/pdfcompose/pdf/fonts"
	"github.com/georgepadayatti/pdfcompose/replicate"
	"github.com/georgepadayatti/pdfcompose/stamp"
)

// Common errors
var (
	ErrConfigurationError = errors.New("configuration error")
	ErrUnexpectedField    = errors.New("unexpected field in configuration")
	ErrInvalidConfigType  = errors.New("configuration must be a dictionary")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err == nil {
		return ErrConfigurationError
	}
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// Config is the complete application configuration.
type Config struct {
	Backend    *BackendConfig    `yaml:"backend" json:"backend,omitempty"`
	Copies     *CopiesConfig     `yaml:"copies" json:"copies,omitempty"`
	Watermark  *WatermarkConfig  `yaml:"watermark" json:"watermark,omitempty"`
	Encryption *EncryptionConfig `yaml:"encryption" json:"encryption,omitempty"`
	Page       *PageConfig       `yaml:"page" json:"page,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging" json:"logging,omitempty"`
}

// BackendConfig selects and configures rendering backends.
type BackendConfig struct {
	// Preferred is the requested backend, or "auto".
	Preferred string `yaml:"preferred" json:"preferred,omitempty"`

	// Priority overrides the order used when the preferred backend is
	// unavailable.
	Priority []string `yaml:"priority" json:"priority,omitempty"`

	Chrome *ChromeConfig `yaml:"chrome" json:"chrome,omitempty"`

	// Commands maps external backends to their executables.
	Commands *CommandsConfig `yaml:"commands" json:"commands,omitempty"`

	Builtin *BuiltinConfig `yaml:"builtin" json:"builtin,omitempty"`
}

// ChromeConfig configures the headless Chrome backend.
type ChromeConfig struct {
	Bin       string `yaml:"bin" json:"bin,omitempty"`
	NoSandbox bool   `yaml:"no-sandbox" json:"no_sandbox"`
	// Timeout is the per-render timeout in seconds.
	Timeout int `yaml:"timeout" json:"timeout,omitempty"`
}

// CommandsConfig names the external converter executables.
type CommandsConfig struct {
	WeasyPrint  string `yaml:"weasyprint" json:"weasyprint,omitempty"`
	WkHTMLToPDF string `yaml:"wkhtmltopdf" json:"wkhtmltopdf,omitempty"`
}

// BuiltinConfig configures the builtin renderer.
type BuiltinConfig struct {
	Font     string  `yaml:"font" json:"font,omitempty"`
	FontSize float64 `yaml:"font-size" json:"font_size,omitempty"`
}

// CopiesConfig sets the default copy request.
type CopiesConfig struct {
	Count     int      `yaml:"count" json:"count,omitempty"`
	Labels    []string `yaml:"labels" json:"labels,omitempty"`
	Watermark *bool    `yaml:"watermark" json:"watermark,omitempty"`
}

// WatermarkConfig sets the copy label style. Unset values keep the
// defaults of stamp.DefaultStyle.
type WatermarkConfig struct {
	Font string `yaml:"font" json:"font,omitempty"`
	// FontFile is a TrueType font embedded instead of Font, needed for
	// labels outside Windows-1252. Relative paths resolve against the
	// working directory.
	FontFile string   `yaml:"font-file" json:"font_file,omitempty"`
	FontSize float64  `yaml:"font-size" json:"font_size,omitempty"`
	Opacity  *float64 `yaml:"opacity" json:"opacity,omitempty"`
	// Color is a gray level from 0 (black) to 1 (white).
	Color *float64 `yaml:"color" json:"color,omitempty"`
	Angle float64  `yaml:"angle" json:"angle,omitempty"`
}

// EncryptionConfig sets how outputs are encrypted when a password is
// given. The user password itself is never read from the file.
type EncryptionConfig struct {
	OwnerPassword string `yaml:"owner-password" json:"owner_password,omitempty"`
	AESBits       int    `yaml:"aes-bits" json:"aes_bits,omitempty"`
}

// PageConfig sets the page geometry of rendered documents.
type PageConfig struct {
	// Size is a paper name (letter, legal, a4, a5) or "WIDTHxHEIGHT" in
	// points.
	Size         string  `yaml:"size" json:"size,omitempty"`
	Margin       float64 `yaml:"margin" json:"margin,omitempty"`
	HeaderHeight float64 `yaml:"header-height" json:"header_height,omitempty"`
	FooterHeight float64 `yaml:"footer-height" json:"footer_height,omitempty"`
}

// configKeys lists the keys accepted in each section.
var configKeys = map[string][]string{
	"":                 {"backend", "copies", "watermark", "encryption", "page", "logging"},
	"backend":          {"preferred", "priority", "chrome", "commands", "builtin"},
	"backend.chrome":   {"bin", "no-sandbox", "timeout"},
	"backend.commands": {"weasyprint", "wkhtmltopdf"},
	"backend.builtin":  {"font", "font-size"},
	"copies":           {"count", "labels", "watermark"},
	"watermark":        {"font", "font-file", "font-size", "opacity", "color", "angle"},
	"encryption":       {"owner-password", "aes-bits"},
	"page":             {"size", "margin", "header-height", "footer-height"},
	"logging":          {"level", "format", "output"},
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data. Keys may use dashes
// or underscores; unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return &Config{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &ConfigError{Message: "top level is not a mapping", Err: ErrInvalidConfigType}
	}
	return LoadConfigFromMap(m)
}

// LoadConfigFromMap loads configuration from a map.
func LoadConfigFromMap(data map[string]any) (*Config, error) {
	normalized, err := normalizeSection("", data)
	if err != nil {
		return nil, err
	}
	yamlData, err := yaml.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config map: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// normalizeSection rewrites the keys of one section to dashes, checks
// them and recurses into known subsections.
func normalizeSection(path string, section map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if err := CheckConfigKeys(sectionName(path), configKeys[path], keys); err != nil {
		return nil, &ConfigError{Field: path, Message: err.Error(), Err: err}
	}

	out := make(map[string]any, len(section))
	for _, k := range keys {
		key := normalizeKey(k)
		value := section[k]
		child := key
		if path != "" {
			child = path + "." + key
		}
		if _, nested := configKeys[child]; nested && value != nil {
			m, ok := value.(map[string]any)
			if !ok {
				return nil, &ConfigError{Field: child, Message: fmt.Sprintf("must be a mapping, got %T", value), Err: ErrInvalidConfigType}
			}
			normalized, err := normalizeSection(child, m)
			if err != nil {
				return nil, err
			}
			value = normalized
		}
		out[key] = value
	}
	return out, nil
}

func sectionName(path string) string {
	if path == "" {
		return "top level"
	}
	return path
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		if !expectedSet[normalizeKey(k)] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey normalizes a configuration key (underscores to dashes).
func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// SetDefaults fills unset sections and values.
func (c *Config) SetDefaults() {
	if c.Backend == nil {
		c.Backend = &BackendConfig{}
	}
	if c.Backend.Preferred == "" {
		c.Backend.Preferred = backend.Auto
	}
	if c.Copies == nil {
		c.Copies = &CopiesConfig{}
	}
	if c.Watermark == nil {
		c.Watermark = &WatermarkConfig{}
	}
	if c.Encryption == nil {
		c.Encryption = &EncryptionConfig{}
	}
	if c.Encryption.AESBits == 0 {
		c.Encryption.AESBits = 256
	}
	if c.Page == nil {
		c.Page = &PageConfig{}
	}
	c.Page.SetDefaults()
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.SetDefaults()
}

// Validate checks every section that is set.
func (c *Config) Validate() error {
	if b := c.Backend; b != nil {
		if b.Preferred != "" && b.Preferred != backend.Auto && !slices.Contains(backend.DefaultPriority(), b.Preferred) {
			return NewConfigError("backend.preferred", fmt.Sprintf("unknown backend %q", b.Preferred))
		}
		for _, name := range b.Priority {
			if !slices.Contains(backend.DefaultPriority(), name) {
				return NewConfigError("backend.priority", fmt.Sprintf("unknown backend %q", name))
			}
		}
		if b.Chrome != nil && b.Chrome.Timeout < 0 {
			return NewConfigError("backend.chrome.timeout", "must not be negative")
		}
		if b.Builtin != nil {
			switch b.Builtin.Font {
			case "", "Helvetica", "Times", "Courier":
			default:
				return NewConfigError("backend.builtin.font", fmt.Sprintf("%q is not Helvetica, Times or Courier", b.Builtin.Font))
			}
			if b.Builtin.FontSize < 0 {
				return NewConfigError("backend.builtin.font-size", "must not be negative")
			}
		}
	}
	if c.Copies != nil && c.Copies.Count < 0 {
		return NewConfigError("copies.count", "must not be negative")
	}
	if w := c.Watermark; w != nil {
		if w.Font != "" {
			if _, err := fonts.NewStandardFont(fonts.StandardFont(w.Font)); err != nil {
				return &ConfigError{Field: "watermark.font", Message: err.Error(), Err: err}
			}
		}
		if w.FontFile != "" {
			if _, err := fonts.LoadTrueTypeFile(w.FontFile); err != nil {
				return &ConfigError{Field: "watermark.font-file", Message: err.Error(), Err: err}
			}
		}
		if w.FontSize < 0 {
			return NewConfigError("watermark.font-size", "must not be negative")
		}
		if w.Opacity != nil && (*w.Opacity <= 0 || *w.Opacity > 1) {
			return NewConfigError("watermark.opacity", "must be in (0, 1]")
		}
		if w.Color != nil && (*w.Color < 0 || *w.Color > 1) {
			return NewConfigError("watermark.color", "must be in [0, 1]")
		}
	}
	if err := c.validateLabels(); err != nil {
		return err
	}
	if e := c.Encryption; e != nil {
		switch e.AESBits {
		case 0, 128, 256:
		default:
			return NewConfigError("encryption.aes-bits", fmt.Sprintf("%d is not 128 or 256", e.AESBits))
		}
	}
	if c.Page != nil {
		if err := c.Page.Validate(); err != nil {
			return err
		}
	}
	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateLabels checks that the watermark font can show every configured
// label. Unstamped labels are not checked.
func (c *Config) validateLabels() error {
	if c.Copies == nil || len(c.Copies.Labels) == 0 {
		return nil
	}
	if c.Copies.Watermark != nil && !*c.Copies.Watermark {
		return nil
	}
	style := c.Watermark.Style()
	for _, label := range c.Copies.Labels {
		if _, err := stamp.NewWatermark(label, style); err != nil {
			return &ConfigError{Field: "copies.labels", Message: err.Error(), Err: err}
		}
	}
	return nil
}

// BackendOptions returns the options for backend.NewDefaultSelector.
func (c *BackendConfig) BackendOptions() backend.Options {
	var opts backend.Options
	if c == nil {
		return opts
	}
	opts.Priority = c.Priority
	if c.Chrome != nil {
		opts.Chrome = backend.ChromeOptions{
			Bin:       c.Chrome.Bin,
			NoSandbox: c.Chrome.NoSandbox,
			Timeout:   time.Duration(c.Chrome.Timeout) * time.Second,
		}
	}
	if c.Commands != nil {
		opts.WeasyPrintBin = c.Commands.WeasyPrint
		opts.WkHTMLToPDFBin = c.Commands.WkHTMLToPDF
	}
	if c.Builtin != nil {
		opts.Builtin = backend.BuiltinOptions{Font: c.Builtin.Font, FontSize: c.Builtin.FontSize}
	}
	return opts
}

// Style returns the watermark style.
func (c *WatermarkConfig) Style() stamp.Style {
	style := stamp.DefaultStyle()
	if c == nil {
		return style
	}
	if c.Font != "" {
		style.Font = fonts.StandardFont(c.Font)
	}
	style.FontFile = c.FontFile
	style.FontSize = c.FontSize
	style.Angle = c.Angle
	if c.Opacity != nil {
		style.Opacity = *c.Opacity
	}
	if c.Color != nil {
		style.Gray = *c.Color
	}
	return style
}

// Encryption returns encryption settings for password, or nil when the
// password is empty.
func (c *EncryptionConfig) Encryption(password string) *replicate.Encryption {
	if password == "" {
		return nil
	}
	enc := &replicate.Encryption{Password: password}
	if c != nil {
		enc.OwnerPassword = c.OwnerPassword
		enc.AESBits = c.AESBits
	}
	return enc
}

// CopyRequest builds the default copy request. count overrides the
// configured count when positive.
func (c *Config) CopyRequest(count int, password string) replicate.CopyRequest {
	req := replicate.CopyRequest{
		Style:      c.Watermark.Style(),
		Encryption: c.Encryption.Encryption(password),
	}
	if c.Copies != nil {
		req.Count = c.Copies.Count
		req.Labels = c.Copies.Labels
		req.Watermark = c.Copies.Watermark
	}
	if count > 0 {
		req.Count = count
	}
	return req
}

var paperSizes = map[string][2]float64{
	"letter": {612, 792},
	"legal":  {612, 1008},
	"a4":     {595.28, 841.89},
	"a5":     {419.53, 595.28},
}

var customSize = regexp.MustCompile(`^(\d+(?:\.\d+)?)x(\d+(?:\.\d+)?)$`)

// ParsePageSize returns the width and height in points of a paper name or
// a "WIDTHxHEIGHT" size.
func ParsePageSize(size string) (width, height float64, err error) {
	size = strings.ToLower(strings.TrimSpace(size))
	if wh, ok := paperSizes[size]; ok {
		return wh[0], wh[1], nil
	}
	m := customSize.FindStringSubmatch(size)
	if m == nil {
		return 0, 0, NewConfigError("page.size", fmt.Sprintf("unknown page size %q", size))
	}
	width, _ = strconv.ParseFloat(m[1], 64)
	height, _ = strconv.ParseFloat(m[2], 64)
	if width <= 0 || height <= 0 {
		return 0, 0, NewConfigError("page.size", fmt.Sprintf("empty page size %q", size))
	}
	return width, height, nil
}

// SetDefaults sets a US Letter page with half inch margins.
func (c *PageConfig) SetDefaults() {
	if c.Size == "" {
		c.Size = "letter"
	}
	if c.Margin == 0 {
		c.Margin = 36
	}
}

// Validate validates the page configuration.
func (c *PageConfig) Validate() error {
	if c.Size != "" {
		if _, _, err := ParsePageSize(c.Size); err != nil {
			return err
		}
	}
	for field, v := range map[string]float64{
		"page.margin":        c.Margin,
		"page.header-height": c.HeaderHeight,
		"page.footer-height": c.FooterHeight,
	} {
		if v < 0 {
			return NewConfigError(field, "must not be negative")
		}
	}
	return nil
}

// Layout returns an empty layout with the configured geometry.
func (c *PageConfig) Layout() (backend.Layout, error) {
	layout := backend.DefaultLayout()
	if c == nil {
		return layout, nil
	}
	if c.Size != "" {
		w, h, err := ParsePageSize(c.Size)
		if err != nil {
			return layout, err
		}
		layout.Width, layout.Height = w, h
	}
	if c.Margin > 0 {
		layout.Margin = c.Margin
	}
	layout.Header.Height = c.HeaderHeight
	layout.Footer.Height = c.FooterHeight
	return layout, nil
}
