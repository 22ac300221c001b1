package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/alpml/internal/config"
	"github.com/vango-dev/alpml/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Description is a short project description.
	Description string

	// ScriptURL is the reactivity script. Defaults to config.DefaultScriptURL.
	ScriptURL string
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files is a map of slash-separated relative paths to file contents.
	// Component sources are stored escaped, the way they sit inside <pre>.
	Files map[string]string
}

// Available templates.
var templates = map[string]*Template{
	"minimal": minimalTemplate(),
	"counter": counterTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("A052").WithDetailf("%q", name)
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the template's file paths, sorted.
func (t *Template) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Create writes the project into dir. Existing files are left alone and
// reported unless overwrite is set.
func (t *Template) Create(dir string, cfg Config, overwrite bool) error {
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = config.DefaultScriptURL
	}

	if !overwrite {
		for _, relPath := range t.Paths() {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(relPath))); err == nil {
				return errors.New("A051").WithDetail(relPath)
			}
		}
	}

	for _, relPath := range t.Paths() {
		tmpl, err := template.New(relPath).Parse(t.Files[relPath])
		if err != nil {
			return errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
		}

		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			return err
		}
	}
	return nil
}

const configFile = `{
  // Project settings for {{.ProjectName}}.
  "name": "{{.ProjectName}}",
  "pages": ".",
  "dev": {
    "port": 3000,
    "hotReload": true
  },
  "log": {
    "level": "info"
  }
}
`

// minimalTemplate returns the minimal template.
func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "One page with one component",
		Files: map[string]string{
			config.ConfigFileName: configFile,
			"index.html": `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.ProjectName}}</title>
  <script src="{{.ScriptURL}}" defer="true"></script>
</head>
<body>
  <object type="text/x-alpml" is="alp-greeting" data="components/greeting.html"></object>

  <alp-greeting name="{{.ProjectName}}"></alp-greeting>
</body>
</html>
`,
			"components/greeting.html": `<!DOCTYPE html>
<html>
<body>
<pre>
&lt;template props=&quot;name&quot;&gt;
  &lt;h1&gt;Welcome to ${name}&lt;/h1&gt;
&lt;/template&gt;
</pre>
</body>
</html>
`,
		},
	}
}

// counterTemplate returns the template with nested components.
func counterTemplate() *Template {
	return &Template{
		Name:        "counter",
		Description: "Nested components and a reactive counter",
		Files: map[string]string{
			config.ConfigFileName: configFile,
			"README.md": `# {{.ProjectName}}

{{.Description}}

    alpml serve                                   # http://localhost:3000
    alpml render index.html --set alp-main.count=5
    alpml check
`,
			"index.html": `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.ProjectName}}</title>
  <script src="{{.ScriptURL}}" defer="true"></script>
</head>
<body>
  <object type="text/x-alpml" is="alp-sidebar" data="components/sidebar.html"></object>
  <object type="text/x-alpml" is="alp-navbar" data="components/navbar.html"></object>
  <object type="text/x-alpml" is="alp-main" data="components/main.html"></object>

  <alp-sidebar></alp-sidebar>
  <alp-navbar name="Jane"></alp-navbar>
  <alp-navbar name="Paul"></alp-navbar>
  <alp-main count="50">
    <alp-navbar name="Rania"></alp-navbar>
  </alp-main>

  <script>
    document.addEventListener('click', function (e) {
      if (e.target.matches('[data-cy-content] > button')) {
        var main = document.querySelector('alp-main');
        main.setAttribute('count', Number(main.getAttribute('count')) + 1);
      }
    });
  </script>
</body>
</html>
`,
			"components/sidebar.html": `<!DOCTYPE html>
<html>
<body>
<pre>
&lt;template props=&quot;name&quot;&gt;
  &lt;aside data-cy-sidebar&gt;Hi ${name}&lt;/aside&gt;
&lt;/template&gt;
</pre>
</body>
</html>
`,
			"components/navbar.html": `<!DOCTYPE html>
<html>
<body>
<pre>
&lt;template props=&quot;name&quot;&gt;
  &lt;nav data-cy-navbar=&quot;${name}&quot;&gt;Navbar says hi ${name}&lt;/nav&gt;
&lt;/template&gt;
</pre>
</body>
</html>
`,
			"components/main.html": `<!DOCTYPE html>
<html>
<body>
<pre>
&lt;template props=&quot;count&quot;&gt;
  &lt;main data-cy-main&gt;
    &lt;h2&gt;Main&lt;/h2&gt;
    &lt;div data-cy-content&gt;
      &lt;button&gt;Increment&lt;/button&gt;
      ${children}
      &lt;span&gt;${count}&lt;/span&gt;
    &lt;/div&gt;
  &lt;/main&gt;
&lt;/template&gt;
</pre>
</body>
</html>
`,
		},
	}
}
