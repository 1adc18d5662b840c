package config

import (
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimdowning-cyclops/myver-go/internal/version"
)

const semverConfig = `strict-semver: true
parts:
  major:
    value: 3
    requires: minor
  minor:
    value: 9
    prefix: '.'
    requires: patch
  patch:
    value: 2
    prefix: '.'
  pre:
    value: alpha
    prefix: '-'
    requires: prenum
    identifier:
      strings: [alpha, beta, rc]
  prenum:
    value: 1
    prefix: '.'
    number:
      start: 1
  # build metadata
  dev:
    value: null
    prefix: '+'
    number:
      label: dev
      label-suffix: '.'
      start: 1
      show-start: false
`

func TestParse(t *testing.T) {
	cfg, err := Parse(semverConfig)
	require.NoError(t, err)

	assert.True(t, cfg.StrictSemver)
	require.Len(t, cfg.Parts, 6)

	keys := make([]string, len(cfg.Parts))
	for i, pc := range cfg.Parts {
		keys[i] = pc.Key
	}
	assert.Equal(t, []string{"major", "minor", "patch", "pre", "prenum", "dev"}, keys)

	pre := cfg.Parts[3]
	require.NotNil(t, pre.Identifier)
	assert.Equal(t, []string{"alpha", "beta", "rc"}, pre.Identifier.Strings)
	assert.Equal(t, "prenum", pre.Requires)

	dev := cfg.Parts[5]
	assert.Nil(t, dev.Value)
	require.NotNil(t, dev.Number)
	require.NotNil(t, dev.Number.ShowStart)
	assert.False(t, *dev.Number.ShowStart)
	assert.Equal(t, "dev", dev.Number.Label)
	assert.Equal(t, ".", dev.Number.LabelSuffix)
}

func TestConfig_Version(t *testing.T) {
	cfg, err := Parse(semverConfig)
	require.NoError(t, err)

	v, err := cfg.Version()
	require.NoError(t, err)
	assert.Equal(t, "3.9.2-alpha.1", v.String())

	require.NoError(t, v.Bump([]string{"patch", "dev"}))
	assert.Equal(t, "3.9.3+dev", v.String())
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name:        "invalid yaml",
			content:     `parts: [invalid`,
			errContains: "failed to parse",
		},
		{
			name:        "empty document",
			content:     ``,
			errContains: "must be a mapping",
		},
		{
			name:        "missing parts",
			content:     `strict-semver: true`,
			errContains: "`parts`",
		},
		{
			name:        "parts is a list",
			content:     `parts: [major, minor]`,
			errContains: "must be a mapping",
		},
		{
			name:        "empty parts",
			content:     `parts: {}`,
			errContains: "at least one part",
		},
		{
			name: "missing value",
			content: `parts:
  major:
    prefix: v
`,
			errContains: "`value`",
		},
		{
			name: "identifier and number",
			content: `parts:
  major:
    value: 1
    identifier:
      strings: [a]
    number:
      start: 1
`,
			errContains: "cannot be an identifier and number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, version.ErrConfig)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestConfig_VersionInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "value not a number",
			content: `parts:
  major:
    value: one
`,
		},
		{
			name: "identifier value not in strings",
			content: `parts:
  pre:
    value: gamma
    identifier:
      strings: [alpha, beta]
`,
		},
		{
			name: "identifier without strings",
			content: `parts:
  pre:
    value: null
    identifier:
      start: 0
`,
		},
		{
			name: "duplicate requires target missing",
			content: `parts:
  major:
    value: 1
    requires: minor
`,
		},
		{
			name: "self reference",
			content: `parts:
  major:
    value: 1
    requires: major
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.content)
			require.NoError(t, err)
			_, err = cfg.Version()
			assert.ErrorIs(t, err, version.ErrConfig)
		})
	}
}

func TestConfig_UpdateAndSave(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "myver.yml", []byte(semverConfig), 0644))

	cfg, err := Load(fs, "myver.yml")
	require.NoError(t, err)
	v, err := cfg.Version()
	require.NoError(t, err)

	require.NoError(t, v.Bump([]string{"minor", "pre=rc"}))
	require.NoError(t, cfg.Update(v))
	require.NoError(t, cfg.Save(fs, "myver.yml"))

	data, err := util.ReadFile(fs, "myver.yml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# build metadata")

	reloaded, err := Load(fs, "myver.yml")
	require.NoError(t, err)
	assert.True(t, reloaded.StrictSemver)
	rv, err := reloaded.Version()
	require.NoError(t, err)
	assert.Equal(t, "3.10.0-rc.1", rv.String())
	assert.True(t, rv.Equal(v))
}

func TestConfig_UpdateClearsValue(t *testing.T) {
	cfg, err := Parse(semverConfig)
	require.NoError(t, err)
	v, err := cfg.Version()
	require.NoError(t, err)

	require.NoError(t, v.Reset([]string{"pre"}))
	require.NoError(t, cfg.Update(v))
	assert.Nil(t, cfg.Parts[3].Value)
	assert.Nil(t, cfg.Parts[4].Value)

	data, err := cfg.Marshal()
	require.NoError(t, err)
	reloaded, err := Parse(string(data))
	require.NoError(t, err)
	rv, err := reloaded.Version()
	require.NoError(t, err)
	assert.Equal(t, "3.9.2", rv.String())
}

func TestFind(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr bool
	}{
		{name: "default name", files: []string{"myver.yml", "README.md"}, want: "project/myver.yml"},
		{name: "yaml extension", files: []string{"myver.yaml"}, want: "project/myver.yaml"},
		{name: "hidden file", files: []string{".myver.yml", "go.mod"}, want: "project/.myver.yml"},
		{name: "no config", files: []string{"go.mod"}, wantErr: true},
		{name: "ambiguous", files: []string{"myver.yml", ".myver.yaml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memfs.New()
			for _, f := range tt.files {
				require.NoError(t, util.WriteFile(fs, fs.Join("project", f), []byte("parts: {}"), 0644))
			}

			got, err := Find(fs, "project")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind_NotExist(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("empty", 0755))

	_, err := Find(fs, "empty")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(memfs.New(), "nonexistent/myver.yml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
