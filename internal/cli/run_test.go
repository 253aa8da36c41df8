package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/echobuf/internal/cli"
)

func Test_Run_Prints_Global_Flags_When_Flag_Is_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "ls")

	assert.Equal(t, 1, exitCode, "exit code")
	assert.Empty(t, stdout, "stdout")

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")
	cli.AssertContains(t, stderr, "Global flags:")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--backend")
	cli.AssertContains(t, stderr, "--data-dir")
}

func Test_Run_Fails_When_Data_Dir_Flag_Is_Empty(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--data-dir=", "ls")

	assert.Equal(t, 1, exitCode, "exit code")
	assert.Empty(t, stdout, "stdout")
	cli.AssertContains(t, stderr, "data_dir cannot be empty")
	cli.AssertContains(t, stderr, "Global flags:")
}

func Test_Run_Prints_Usage_When_No_Command_Given(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"echobuf"}, nil, nil)

	require.Equal(t, 0, exitCode, "exit code")
	assert.Empty(t, stderr.String(), "stderr")

	cli.AssertContains(t, stdout.String(), "echobuf - deterministic-address buffer store")
	cli.AssertContains(t, stdout.String(), "--cwd")

	for _, name := range []string{"keygen", "addr", "sign", "create", "write", "auth-write", "show", "ls", "stats", "print-config"} {
		cli.AssertContains(t, stdout.String(), "  "+name+" ")
	}
}

func Test_Run_Prints_Usage_When_Help_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("--help")

	cli.AssertContains(t, stdout, "Usage: echobuf [global flags] <command> [args]")
}

func Test_Run_Prints_Command_Help_When_Help_Flag_Follows_Command(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("create", "--help")

	cli.AssertContains(t, stdout, "Usage: echobuf create")
	cli.AssertContains(t, stdout, "--capacity")
	cli.AssertContains(t, stdout, "--owner")
}

func Test_Run_Fails_When_Command_Is_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
}

func Test_Run_Prints_Command_Help_To_Stderr_When_Command_Flag_Is_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("ls", "--bogus")

	cli.AssertContains(t, stderr, "unknown flag: --bogus")
	cli.AssertContains(t, stderr, "Usage: echobuf ls")
}

func Test_Run_Fails_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteConfig(`{"backend": "floppy"}`)

	stderr := c.MustFail("ls")

	cli.AssertContains(t, stderr, "floppy")
}
