// Package cli implements shapectl, the command-line companion of the server.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/promptcad/backend/internal/config"
)

// Options holds CLI-level configuration.
type Options struct {
	ConfigPath string
	Vocabulary string
	Verbose    bool
}

// NewRootCmd wires the cobra root command. The container is built once the
// persistent flags are parsed.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath()
	}

	var container *Container
	get := func() *Container { return container }

	root := &cobra.Command{
		Use:   "shapectl",
		Short: "shapectl - PromptCAD command line",
		Long:  "shapectl interprets prompts, builds meshes and manages projects and the shape library offline.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if standalone[cmd.Name()] {
				return nil
			}
			c, err := BuildContainer(opts)
			if err != nil {
				return err
			}
			container = c
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Path to the XML configuration file")
	root.PersistentFlags().StringVar(&opts.Vocabulary, "vocabulary", opts.Vocabulary, "YAML vocabulary replacing the built-in prompt keywords")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Log kernel activity to stderr")

	root.AddCommand(newInterpretCommand(get))
	root.AddCommand(newGenerateCommand(get))
	root.AddCommand(newProjectsCommand(get))
	root.AddCommand(newLibraryCommand(get))
	root.AddCommand(newKernelsCommand())
	return root
}

// standalone commands run without loading configuration.
var standalone = map[string]bool{
	"kernels":    true,
	"help":       true,
	"completion": true,
}

func defaultConfigPath() string {
	if p := os.Getenv("PROMPTCAD_CONFIG"); p != "" {
		return p
	}
	return config.FileName
}
