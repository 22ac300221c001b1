package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/alpml"
)

func renderCmd(flags *globalFlags) *cobra.Command {
	var (
		output       string
		sets         []string
		noReactivity bool
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "render <page>",
		Short: "Render a page to HTML",
		Long: `Render a page with its components expanded.

The page is read from the pages directory, or from stdin when it is "-".
Component declarations are resolved, templates are rendered for every
component element, and the declarations are removed from the output.

Examples:
  alpml render index.html
  alpml render index.html -o dist/index.html
  alpml render index.html --set alp-counter.count=3
  cat page.html | alpml render -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), flags, args[0], output, sets, noReactivity, timeout)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a component attribute (tag.attr=value, repeatable)")
	cmd.Flags().BoolVar(&noReactivity, "no-reactivity", false, "Do not mount the reactivity script")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")

	return cmd
}

func runRender(ctx context.Context, flags *globalFlags, page, output string, sets []string, noReactivity bool, timeout time.Duration) (err error) {
	cfg, logger, err := flags.load()
	if err != nil {
		return err
	}
	if noReactivity {
		cfg.Reactivity.Disabled = true
	}

	overrides := make([]alpml.Override, 0, len(sets))
	for _, s := range sets {
		o, err := alpml.ParseOverride(s)
		if err != nil {
			return err
		}
		overrides = append(overrides, o)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	engine := alpml.New(alpml.WithConfig(cfg), alpml.WithLogger(logger))
	if page == "-" {
		return engine.RenderDocument(ctx, os.Stdin, w, overrides...)
	}
	return engine.RenderPage(ctx, page, w, overrides...)
}
