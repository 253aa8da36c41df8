package cli_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/calvinalkan/echobuf/internal/cli"
	"github.com/calvinalkan/echobuf/internal/config"
)

func Test_Session_Keeps_Store_Open_When_Running_Several_Commands(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: t.TempDir(),
		DefaultBackend:  config.BackendDatastore,
		Env:             map[string]string{},
	})
	require.NoError(t, err)

	session := cli.NewSession(&cfg, zaptest.NewLogger(t))

	t.Cleanup(func() { require.NoError(t, session.Close()) })

	var stdout, stderr bytes.Buffer

	o := cli.NewIO(&stdout, &stderr)
	ctx := context.Background()

	require.Equal(t, 0, session.Exec(ctx, o, []string{"create", "echo", "--owner", "01", "--capacity", "2"}), stderr.String())
	require.Equal(t, 0, session.Exec(ctx, o, []string{"write", "echo", "--owner", "01", "--data", "hi"}), stderr.String())
	require.Equal(t, 1, session.Exec(ctx, o, []string{"write", "echo", "--owner", "01", "--data", "hi"}))

	stdout.Reset()

	require.Equal(t, 0, session.Exec(ctx, o, []string{"stats"}), stderr.String())

	cli.AssertContains(t, stdout.String(), `echobuf_operations_total{op="create",result="ok"} 1`)
	cli.AssertContains(t, stdout.String(), `echobuf_operations_total{op="write_once",result="buffer_overwrite"} 1`)
	cli.AssertContains(t, stdout.String(), "echobuf_bytes_written_total 2")

	assert.Equal(t, 0, session.Exec(ctx, o, nil), "empty line should be a no-op")
}

func Test_Session_Fails_When_Filesystem_Backend_Is_Locked(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)

	first := cli.NewSession(&cfg, nil)
	second := cli.NewSession(&cfg, nil)

	t.Cleanup(func() { _ = first.Close() })

	_, err = first.Store(context.Background())
	require.NoError(t, err)

	_, err = second.Store(context.Background())
	require.Error(t, err, "second session should not open a locked directory")
	require.NoError(t, second.Close())
}
