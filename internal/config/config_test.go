package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luposdate/luposdate-sub008/internal/index"
	"github.com/luposdate/luposdate-sub008/pkg/collation"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(Env{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg.DataHome, AppName), cfg.DataDir)
	assert.Equal(t, 8192, cfg.PageSize)
	assert.Equal(t, "SPO", cfg.Order)
	assert.Equal(t, index.CodecInterned, cfg.CodecKind())
	assert.False(t, cfg.Lenient)
	assert.Zero(t, cfg.Verbosity)
}

func TestLoadFrom_Values(t *testing.T) {
	cfg, err := LoadFrom(Env{
		"LUPOS_DATA_DIR":  "/tmp/idx",
		"LUPOS_PAGE_SIZE": "512",
		"LUPOS_ORDER":     "ops",
		"LUPOS_CODEC":     "raw",
		"LUPOS_LENIENT":   "true",
		"LUPOS_VERBOSITY": "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", cfg.DataDir)
	assert.Equal(t, 512, cfg.PageSize)
	assert.Equal(t, "OPS", cfg.Order)
	assert.Equal(t, collation.OPS, cfg.CollationOrder())
	assert.Equal(t, index.CodecRaw, cfg.CodecKind())
	assert.True(t, cfg.Lenient)
	assert.Equal(t, 2, cfg.Verbosity)
}

func TestLoadFrom_Invalid(t *testing.T) {
	for name, e := range map[string]Env{
		"order":     {"LUPOS_ORDER": "XYZ"},
		"codec":     {"LUPOS_CODEC": "zip"},
		"page size": {"LUPOS_PAGE_SIZE": "16"},
		"not a num": {"LUPOS_PAGE_SIZE": "big"},
		"verbosity": {"LUPOS_VERBOSITY": "-1"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(e)
			assert.Error(t, err)
		})
	}
}

func TestReadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nLUPOS_ORDER = POS\n\nLUPOS_CODEC=string\n"), 0o600))

	e, err := ReadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, Env{"LUPOS_ORDER": "POS", "LUPOS_CODEC": "string"}, e)

	cfg, err := LoadFrom(e)
	require.NoError(t, err)
	assert.Equal(t, "POS", cfg.Order)

	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o600))
	_, err = ReadEnvFile(path)
	assert.Error(t, err)
}

func TestPrintEnv(t *testing.T) {
	cfg, err := LoadFrom(Env{"LUPOS_DATA_DIR": "/data"})
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintEnv(cfg, &buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"LUPOS_CODEC=interned",
		"LUPOS_DATA_DIR=/data",
		"LUPOS_LENIENT=false",
		"LUPOS_ORDER=SPO",
		"LUPOS_PAGE_SIZE=8192",
		"LUPOS_VERBOSITY=0",
	}, lines)

	// the printed form loads back to the same configuration
	e := Env{}
	for _, l := range lines {
		k, v, _ := strings.Cut(l, "=")
		e[k] = v
	}
	again, err := LoadFrom(e)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestPrintHelp(t *testing.T) {
	cfg, err := LoadFrom(Env{})
	require.NoError(t, err)
	var buf bytes.Buffer
	PrintHelp(cfg, &buf)
	for _, name := range []string{"LUPOS_DATA_DIR", "LUPOS_PAGE_SIZE", "LUPOS_ORDER", "LUPOS_CODEC", "LUPOS_LENIENT", "LUPOS_VERBOSITY"} {
		assert.Contains(t, buf.String(), name)
	}
}
