package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/alpml/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		template    string
		description string
		force       bool
		list        bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a new Alpml project",
		Long: `Create a new Alpml project from a template.

Templates:
  minimal   One page with one component
  counter   Nested components and a reactive counter

Examples:
  alpml init
  alpml init my-site --template=counter`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				for _, name := range templates.List() {
					tmpl, _ := templates.Get(name)
					info("%-10s %s", name, tmpl.Description)
				}
				return nil
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, template, description, force)
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "minimal", "Project template")
	cmd.Flags().StringVarP(&description, "description", "d", "An Alpml site", "Project description")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&list, "list", false, "List the available templates")

	return cmd
}

func runInit(dir, name, description string, force bool) error {
	tmpl, err := templates.Get(name)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}

	cfg := templates.Config{
		ProjectName: filepath.Base(abs),
		Description: description,
	}
	if err := tmpl.Create(abs, cfg, force); err != nil {
		return err
	}

	success("Created %s project in %s", tmpl.Name, abs)
	for _, p := range tmpl.Paths() {
		info("%s", p)
	}
	fmt.Println()
	info("Next: cd %s && alpml serve", dir)
	return nil
}
