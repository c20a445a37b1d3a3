package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptcad/backend/internal/kernel"
	"github.com/promptcad/backend/internal/models"
)

func newInterpretCommand(get func() *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "interpret [prompt]",
		Short: "Print the shape parameters a prompt resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := get().Interpreter.Interpret(strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), params)
		},
	}
}

func newGenerateCommand(get func() *Container) *cobra.Command {
	var (
		output string
		coarse bool
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Interpret a prompt and write the mesh as binary STL",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			params := c.Interpreter.Interpret(strings.Join(args, " "))
			solid, err := c.Kernel.Build(cmd.Context(), params)
			if err != nil {
				return err
			}
			tol := kernel.DefaultTolerance
			if coarse {
				tol = kernel.CoarseTolerance
			}
			if err := c.Kernel.ExportMesh(cmd.Context(), solid, output, tol); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", params.Shape, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "shape.stl", "Output STL path")
	cmd.Flags().BoolVar(&coarse, "coarse", false, "Use the coarse library tolerance")
	return cmd
}

func newProjectsCommand(get func() *Container) *cobra.Command {
	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "List, inspect, save and export projects",
	}

	projectsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				names, err := get().Store.List()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print a project's metadata document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				project, err := get().Store.Load(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), project)
			},
		},
		&cobra.Command{
			Use:   "save <project.json>",
			Short: "Save a project document, building one STEP file per shape",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				var project models.ProjectFile
				if err := json.Unmarshal(data, &project); err != nil {
					return fmt.Errorf("parsing %s: %w", args[0], err)
				}
				dir, err := get().Store.Save(cmd.Context(), project)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %d shapes to %s\n", len(project.Shapes), dir)
				return nil
			},
		},
		&cobra.Command{
			Use:   "export <name> <index> <out.stl>",
			Short: "Mesh one stored shape of a project",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid shape index %q", args[1])
				}
				c := get()
				path, err := c.Store.SolidPath(args[0], index)
				if err != nil {
					return err
				}
				solid, err := c.Kernel.ImportSolid(cmd.Context(), path)
				if err != nil {
					return err
				}
				return c.Kernel.ExportMesh(cmd.Context(), solid, args[2], kernel.DefaultTolerance)
			},
		},
	)

	return projectsCmd
}

func newLibraryCommand(get func() *Container) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and convert the shape library",
	}

	libraryCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List library shapes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				shapes, err := get().Catalog.List()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				for _, s := range shapes {
					fmt.Fprintf(w, "%s\t%s\n", s.Filename, s.DisplayName)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "convert <file.step> [out.stl]",
			Short: "Convert a library shape to a coarse STL mesh",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				conv, err := get().Catalog.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := conv.Filename
				if len(args) == 2 {
					out = args[1]
				}
				if err := os.WriteFile(out, conv.Data, 0644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", args[0], filepath.Clean(out))
				return nil
			},
		},
	)

	return libraryCmd
}

func newKernelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List registered geometry kernels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range kernel.GetGlobalRegistry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
