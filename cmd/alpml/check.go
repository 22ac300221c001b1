package main

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/alpml/internal/errors"
	"github.com/vango-dev/alpml/pkg/dom"
	"github.com/vango-dev/alpml/pkg/loader"
	"github.com/vango-dev/alpml/pkg/page"
	"github.com/vango-dev/alpml/pkg/template"
)

func checkCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Check pages and component documents",
		Long: `Check every HTML file in the pages directory.

Component documents must hold a template that parses. Placeholders
that are not declared props are reported as warnings since they always
render empty. Pages must declare components with hyphenated names and
relative references must point at existing files.

Examples:
  alpml check
  alpml check components/navbar.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(flags, args)
		},
	}
	return cmd
}

func runCheck(flags *globalFlags, files []string) error {
	cfg, _, err := flags.load()
	if err != nil {
		return err
	}

	fsys := os.DirFS(cfg.PagesPath())
	if len(files) == 0 {
		files, err = htmlFiles(fsys)
		if err != nil {
			return err
		}
	}

	var failed int
	for _, name := range files {
		report := checkFile(fsys, strings.TrimPrefix(path.Clean("/"+name), "/"), cfg.Components.Selector)
		for _, w := range report.warnings {
			warn("%s: %s", name, w)
		}
		for _, e := range report.errors {
			errors.Fprint(os.Stdout, e)
		}
		if len(report.errors) > 0 {
			errorMsg("%s", name)
			failed++
			continue
		}
		success("%s", name)
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	info("%d files checked", len(files))
	return nil
}

// checkReport holds the problems found in one file.
type checkReport struct {
	errors   []error
	warnings []string
}

func checkFile(fsys fs.FS, name, selector string) checkReport {
	var r checkReport

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		r.errors = append(r.errors, err)
		return r
	}

	source, err := loader.ExtractSource(data)
	if err == nil {
		checkComponent(&r, name, source)
		return r
	}
	checkPage(&r, fsys, name, data, selector)
	return r
}

func checkComponent(r *checkReport, name, source string) {
	// Recoverable problems are reported as warnings instead of logs.
	tmpl, err := template.Parse(source, template.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		var ae *errors.AlpmlError
		if stderrors.As(err, &ae) {
			err = ae.InFile(name)
		}
		r.errors = append(r.errors, err)
		return
	}

	if tmpl.Trailing != "" {
		r.warnings = append(r.warnings, fmt.Sprintf("markup after </%s> is not rendered", tmpl.ClosingTag))
	}

	used := template.Placeholders(tmpl.InnerHTML)
	for _, a := range tmpl.Attributes {
		used = append(used, template.Placeholders(a.Val)...)
	}
	for _, p := range used {
		if p == template.ChildrenPlaceholder || slices.Contains(tmpl.Props, p) {
			continue
		}
		r.warnings = append(r.warnings, fmt.Sprintf("${%s} is not a declared prop and renders empty", p))
	}
}

func checkPage(r *checkReport, fsys fs.FS, name string, data []byte, selector string) {
	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		r.errors = append(r.errors, err)
		return
	}
	decls, err := doc.QuerySelectorAll(selector)
	if err != nil {
		r.errors = append(r.errors, err)
		return
	}

	seen := make(map[string]bool)
	for _, decl := range decls {
		is, _ := dom.GetAttribute(decl, page.NameAttribute)
		if !dom.IsCustomElementName(is) {
			r.errors = append(r.errors, errors.New("A003").InFile(name).
				WithDetailf("declaration has %s=%q", page.NameAttribute, is))
			continue
		}
		if seen[is] {
			r.errors = append(r.errors, errors.New("A005").InFile(name).WithDetailf("%q is declared twice", is))
		}
		seen[is] = true

		ref, ok := dom.GetAttribute(decl, page.RefAttribute)
		if !ok || ref == "" {
			r.warnings = append(r.warnings, fmt.Sprintf("<%s> has no %s reference", is, page.RefAttribute))
			continue
		}
		if u, err := url.Parse(ref); err != nil || u.Scheme != "" || u.Host != "" {
			continue
		}
		target := strings.TrimPrefix(path.Clean(path.Join(path.Dir("/"+name), ref)), "/")
		if _, err := fs.Stat(fsys, target); err != nil {
			r.errors = append(r.errors, errors.New("A030").InFile(name).
				WithDetailf("<%s> references %s", is, target).Wrap(err))
		}
	}
}

func htmlFiles(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return fs.SkipDir
			}
			return nil
		}
		if ext := strings.ToLower(path.Ext(p)); ext == ".html" || ext == ".htm" {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
