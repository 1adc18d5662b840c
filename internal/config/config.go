package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/jimdowning-cyclops/myver-go/internal/version"
)

// DefaultFileName is used when no config file is found in the directory.
const DefaultFileName = "myver.yml"

// fileNameGlob matches the config file names picked up by Find.
var fileNameGlob = glob.MustCompile("{myver,.myver}.{yml,yaml}")

// Config represents the myver.yml configuration file.
type Config struct {
	StrictSemver bool         `yaml:"strict-semver,omitempty"`
	Parts        []PartConfig `yaml:"-"` // In file order

	doc *yaml.Node // Kept for write-back so comments and ordering survive
}

// PartConfig defines one version part.
type PartConfig struct {
	Key        string            `yaml:"-"`
	Value      *string           `yaml:"value"`
	Prefix     string            `yaml:"prefix,omitempty"`
	Requires   string            `yaml:"requires,omitempty"`
	Identifier *IdentifierConfig `yaml:"identifier,omitempty"`
	Number     *NumberConfig     `yaml:"number,omitempty"`

	valueNode *yaml.Node
}

// IdentifierConfig holds the options of an identifier part.
type IdentifierConfig struct {
	Strings []string `yaml:"strings"`
	Start   int      `yaml:"start,omitempty"`
}

// NumberConfig holds the options of a number part.
type NumberConfig struct {
	Label       string `yaml:"label,omitempty"`
	LabelSuffix string `yaml:"label-suffix,omitempty"`
	Start       int    `yaml:"start,omitempty"`
	ShowStart   *bool  `yaml:"show-start,omitempty"` // Default: true
}

// Find looks for a single config file in dir whose name matches
// {myver,.myver}.{yml,yaml}. It returns an error wrapping os.ErrNotExist
// when there is none.
func Find(fs billy.Filesystem, dir string) (string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}

	var matches []string
	for _, e := range entries {
		if !e.IsDir() && fileNameGlob.Match(e.Name()) {
			matches = append(matches, e.Name())
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no config file in %q: %w", dir, os.ErrNotExist)
	case 1:
		return fs.Join(dir, matches[0]), nil
	default:
		return "", fmt.Errorf("multiple config files in %q: %v", dir, matches)
	}
}

// Load reads and parses a config file from the given path.
func Load(fs billy.Filesystem, path string) (*Config, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(string(data))
}

// Parse parses inline YAML config content.
func Parse(content string) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", version.ErrConfig, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: config must be a mapping", version.ErrConfig)
	}

	cfg := Config{doc: &doc}
	root := doc.Content[0]
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", version.ErrConfig, err)
	}

	parts := mappingValue(root, "parts")
	if parts == nil {
		return nil, fmt.Errorf("%w: you must have the required attribute `parts`", version.ErrConfig)
	}
	if parts.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: `parts` must be a mapping", version.ErrConfig)
	}

	for i := 0; i+1 < len(parts.Content); i += 2 {
		pc, err := parsePart(parts.Content[i].Value, parts.Content[i+1])
		if err != nil {
			return nil, err
		}
		cfg.Parts = append(cfg.Parts, pc)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// parsePart decodes the mapping node of a single part.
func parsePart(key string, node *yaml.Node) (PartConfig, error) {
	if node.Kind != yaml.MappingNode {
		return PartConfig{}, fmt.Errorf("%w: part `%s` must be a mapping", version.ErrConfig, key)
	}

	var pc PartConfig
	if err := node.Decode(&pc); err != nil {
		return PartConfig{}, fmt.Errorf("%w: part `%s`: %v", version.ErrConfig, key, err)
	}
	pc.Key = key
	pc.valueNode = mappingValue(node, "value")
	if pc.valueNode == nil {
		return PartConfig{}, fmt.Errorf("%w: part `%s` must have the required attribute `value`", version.ErrConfig, key)
	}
	return pc, nil
}

// mappingValue returns the value node stored under key, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// validate checks that the config is valid.
func (c *Config) validate() error {
	if len(c.Parts) == 0 {
		return fmt.Errorf("%w: config must define at least one part", version.ErrConfig)
	}

	for _, pc := range c.Parts {
		if pc.Identifier != nil && pc.Number != nil {
			return fmt.Errorf("%w: part `%s` cannot be an identifier and number at the same time, configure either `number` or `identifier`",
				version.ErrConfig, pc.Key)
		}
	}

	return nil
}

// Version builds the version described by the config.
func (c *Config) Version() (*version.Version, error) {
	parts := make([]version.Part, 0, len(c.Parts))
	for _, pc := range c.Parts {
		p, err := pc.part()
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return version.New(parts)
}

// part translates the config of a single part.
func (pc PartConfig) part() (version.Part, error) {
	if pc.Identifier != nil {
		return version.NewIdentifierPart(pc.Key, pc.Value, version.IdentifierOptions{
			Prefix:   pc.Prefix,
			Requires: pc.Requires,
			Strings:  pc.Identifier.Strings,
			Start:    pc.Identifier.Start,
		})
	}

	var value *int
	if pc.Value != nil {
		n, err := strconv.Atoi(*pc.Value)
		if err != nil {
			return version.Part{}, fmt.Errorf("%w: part `%s`: value %q is not a number", version.ErrConfig, pc.Key, *pc.Value)
		}
		value = &n
	}

	opts := version.NumberOptions{Prefix: pc.Prefix, Requires: pc.Requires}
	if pc.Number != nil {
		opts.Label = pc.Number.Label
		opts.LabelSuffix = pc.Number.LabelSuffix
		opts.Start = pc.Number.Start
		opts.HideStart = pc.Number.ShowStart != nil && !*pc.Number.ShowStart
	}
	return version.NewNumberPart(pc.Key, value, opts)
}

// Update copies the part values of v into the config.
func (c *Config) Update(v *version.Version) error {
	for i := range c.Parts {
		pc := &c.Parts[i]
		p, err := v.Part(pc.Key)
		if err != nil {
			return err
		}

		node := pc.valueNode
		node.Kind = yaml.ScalarNode
		node.Style = 0
		value, ok := p.Value()
		switch {
		case !ok:
			pc.Value = nil
			node.Tag, node.Value = "!!null", "null"
		case p.Kind == version.KindIdentifier:
			pc.Value = &value
			node.Tag, node.Value = "!!str", value
		default:
			pc.Value = &value
			node.Tag, node.Value = "!!int", value
		}
	}
	return nil
}

// Marshal encodes the config document, including any updated values.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c.doc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the config document to path.
func (c *Config) Save(fs billy.Filesystem, path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := util.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
