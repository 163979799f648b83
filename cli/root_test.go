package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("Should register the ask, serve, and version subcommands", func(t *testing.T) {
		root := RootCmd()
		var names []string
		for _, sub := range root.Commands() {
			names = append(names, sub.Name())
		}
		assert.Contains(t, names, "ask")
		assert.Contains(t, names, "serve")
		assert.Contains(t, names, "version")
	})

	t.Run("Should expose the logging flags", func(t *testing.T) {
		root := RootCmd()
		assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
		assert.NotNil(t, root.PersistentFlags().Lookup("log-json"))
		assert.NotNil(t, root.PersistentFlags().Lookup("log-source"))
	})
}

func TestVersionCmd(t *testing.T) {
	t.Run("Should print build information", func(t *testing.T) {
		cmd := VersionCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.Run(cmd, nil)
		require.True(t, strings.HasPrefix(out.String(), "text2sql "))
	})
}
