// Package templates provides project scaffolding templates.
//
// Each template holds the files of a working Alpml project: a config file,
// a page declaring components and the component documents it references.
//
// # Available Templates
//
//   - minimal: one page with one component
//   - counter: nested components and a reactive counter
//
// # Usage
//
//	tmpl, err := templates.Get("counter")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tmpl.Create(projectDir, templates.Config{ProjectName: "site"}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Template Variables
//
//	{{.ProjectName}}     - Name of the project
//	{{.Description}}     - Project description
//	{{.ScriptURL}}       - Reactivity script mounted by the page
package templates
