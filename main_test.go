package main

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIParse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, cliOptions()...)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--version", "--env-file", "a.env", "--env-file", "b.env"})
	require.NoError(t, err)
	assert.True(t, cli.Version)
	assert.Len(t, cli.EnvFile, 2)
}

func TestCLIHelpHasNoUnresolvedVars(t *testing.T) {
	var cli CLI
	var out bytes.Buffer
	exited := false
	parser, err := kong.New(&cli, append(cliOptions(),
		kong.Writers(&out, &out),
		kong.Exit(func(int) { exited = true }),
	)...)
	require.NoError(t, err)

	_, _ = parser.Parse([]string{"--help"})
	assert.True(t, exited)
	assert.Contains(t, out.String(), "--list-devices")
	assert.NotContains(t, out.String(), "${")
}
