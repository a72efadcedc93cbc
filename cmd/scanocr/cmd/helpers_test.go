package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// runCommand executes the root command with args from an empty working
// directory and returns stdout and stderr.
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	viper.Reset()
	bindGlobalFlags()
	resetFlags(rootCmd)
	globalConfig, configLoader = nil, nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of c and its children to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			def := strings.Trim(f.DefValue, "[]")
			var vals []string
			if def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// useFakeEngine routes engine construction to eng and records the
// requested config.
func useFakeEngine(t *testing.T, eng *testutil.FakeEngine) *engine.Config {
	t.Helper()

	var got engine.Config
	orig := newEngine
	newEngine = func(_ context.Context, cfg engine.Config) (engine.Engine, error) {
		got = cfg
		return eng, nil
	}
	t.Cleanup(func() { newEngine = orig })
	return &got
}
