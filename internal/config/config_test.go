package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/echobuf/internal/config"
	"github.com/calvinalkan/echobuf/pkg/echobuf"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, config.BackendFile, cfg.Backend)
	assert.Equal(t, filepath.Join(dir, ".echobuf"), cfg.DataDirAbs)
	assert.Equal(t, dir, cfg.EffectiveCwd)
	assert.Equal(t, config.Sources{}, cfg.Sources, "no sources should be recorded")
}

func Test_Load_Layers_Files_And_Overrides_When_All_Present(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := t.TempDir()

	writeFile(t, filepath.Join(xdg, "echobuf", "config.json"), `{
		// global
		"backend": "badger",
		"max_capacity": 4096,
		"namespaces": {"auth": "authorized", "logs": "write-once"},
		"log": {"level": "info"},
	}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{
		"data_dir": "state",
		"namespaces": {"logs": "authorized"},
		"log": {"format": "json"}
	}`)

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: dir,
		BackendOverride: "datastore",
		Env:             map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	require.NoError(t, err)

	assert.Equal(t, "datastore", cfg.Backend, "CLI override should win")
	assert.Equal(t, filepath.Join(dir, "state"), cfg.DataDirAbs, "project file should set data_dir")
	assert.Equal(t, uint64(4096), cfg.MaxCapacity, "global value should survive when project omits it")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Empty(t, cmp.Diff(map[string]string{"auth": "authorized", "logs": "authorized"}, cfg.Namespaces),
		"namespace maps should merge key by key")

	assert.Equal(t, filepath.Join(xdg, "echobuf", "config.json"), cfg.Sources.Global)
	assert.Equal(t, filepath.Join(dir, config.FileName), cfg.Sources.Project)

	policies, err := cfg.NamespacePolicies()
	require.NoError(t, err)
	assert.Equal(t, echobuf.PolicyAuthorized, policies["logs"])
}

func Test_Load_Uses_Explicit_File_Instead_Of_Project_File_When_Config_Flag_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{"backend": "badger"}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"backend": "memory"}`)

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, ConfigPath: "custom.json"})
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Backend)
	assert.Equal(t, filepath.Join(dir, "custom.json"), cfg.Sources.Project)
}

func Test_Load_Prefers_Files_Over_DefaultBackend_When_Both_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, DefaultBackend: config.BackendDatastore})
	require.NoError(t, err)
	assert.Equal(t, config.BackendDatastore, cfg.Backend)

	writeFile(t, filepath.Join(dir, config.FileName), `{"backend": "file"}`)

	cfg, err = config.Load(config.LoadInput{WorkDirOverride: dir, DefaultBackend: config.BackendDatastore})
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, cfg.Backend)
}

func Test_Load_Returns_Error_When_Config_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		want    error
	}{
		{name: "Malformed", content: `{"backend": `, want: config.ErrConfigInvalid},
		{name: "EmptyDataDir", content: `{"data_dir": ""}`, want: config.ErrDataDirEmpty},
		{name: "UnknownBackend", content: `{"backend": "redis"}`, want: config.ErrUnknownBackend},
		{name: "BadPolicy", content: `{"namespaces": {"x": "append"}}`, want: config.ErrInvalidNamespace},
		{name: "BadLevel", content: `{"log": {"level": "loud"}}`, want: config.ErrInvalidLogConfig},
		{name: "BadFormat", content: `{"log": {"format": "xml"}}`, want: config.ErrInvalidLogConfig},
		{name: "HugeCapacity", content: `{"max_capacity": 20971520}`, want: config.ErrMaxCapacityRange},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), testCase.content)

			_, err := config.Load(config.LoadInput{WorkDirOverride: dir})
			require.ErrorIs(t, err, testCase.want)
		})
	}
}

func Test_Load_Returns_ErrConfigFileNotFound_When_Explicit_File_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.LoadInput{WorkDirOverride: t.TempDir(), ConfigPath: "missing.json"})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}
