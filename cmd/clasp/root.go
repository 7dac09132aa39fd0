package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/clasp/compiler"
	"github.com/chazu/clasp/manifest"
	"github.com/chazu/clasp/vm"
	"github.com/chazu/clasp/vm/cache"
	"github.com/chazu/clasp/vm/image"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("clasp.cli")

// cli holds state shared by every subcommand of one invocation.
type cli struct {
	verbosity int
	configDir string
	cfg       *manifest.Manifest
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "clasp",
		Short:         "Compile and run clasp programs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().CountVarP(&c.verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&c.configDir, "config", "", "directory containing "+manifest.FileName)

	root.AddCommand(
		c.runCmd(),
		c.tokensCmd(),
		c.buildCmd(),
		c.disasmCmd(),
		c.lspCmd(),
	)
	return root
}

// setup loads configuration and configures logging.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := c.loadManifest()
	if err != nil {
		return err
	}
	c.cfg = cfg

	verbosity := cfg.Log.Verbosity
	if cmd.Flags().Changed("verbose") {
		verbosity = c.verbosity
	}
	var path *string
	if p := cfg.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)

	log.Debugf("configuration from %s", cfg.Dir)
	return nil
}

func (c *cli) loadManifest() (*manifest.Manifest, error) {
	if c.configDir != "" {
		return manifest.Load(c.configDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = manifest.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// sourcePath returns the file named on the command line, or the manifest's
// entry when none is given.
func (c *cli) sourcePath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if p := c.cfg.EntryPath(); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no input file and no [run] entry in %s", manifest.FileName)
}

// loadProgram reads a compiled image or compiles a source file. Source
// compilation goes through the program cache when one is configured.
func (c *cli) loadProgram(path string) (*vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if image.IsImage(data) {
		return image.Unmarshal(data)
	}

	cachePath := c.cfg.CachePath()
	if cachePath == "" {
		return compileSource(path, data)
	}

	db, err := cache.Open(cachePath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	hash := image.Hash(data)
	if prog, ok, err := db.Get(hash); err != nil {
		return nil, err
	} else if ok {
		// Entries are keyed by source alone and may have been stored under
		// another file name.
		prog.Name = filepath.Base(path)
		log.Debugf("cache hit for %s", path)
		return prog, nil
	}

	prog, err := compileSource(path, data)
	if err != nil {
		return nil, err
	}
	if err := db.Put(hash, prog); err != nil {
		log.Warningf("could not cache %s: %v", path, err)
	}
	return prog, nil
}

func compileSource(path string, data []byte) (*vm.Program, error) {
	prog, err := compiler.Compile(filepath.Base(path), string(data))
	if err != nil {
		return nil, fmt.Errorf("%s:\n%w", path, err)
	}
	return prog, nil
}
