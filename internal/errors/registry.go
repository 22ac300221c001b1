package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string

	// Warning marks codes that are only ever logged.
	Warning bool
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Template Errors (A001-A009)
	// ============================================

	"A001": {
		Category:   CategoryTemplate,
		Message:    "Template tags do not match",
		Suggestion: "Close the root element with the same tag that opened it",
	},
	"A002": {
		Category:   CategoryTemplate,
		Message:    "Template is missing a root tag",
		Suggestion: "Wrap the template body in a single element, e.g. <div>...</div>",
	},
	"A003": {
		Category:   CategoryComponent,
		Message:    "Component name must contain a hyphen",
		Suggestion: "Custom element names need a hyphen, e.g. is=\"alp-navbar\"",
	},
	"A004": {
		Category:   CategoryTemplate,
		Message:    "Template has content after its root element",
		Suggestion: "Only the first root element is rendered; move trailing markup inside it",
		Warning:    true,
	},
	"A005": {
		Category:   CategoryComponent,
		Message:    "Component is already defined",
		Suggestion: "Declare each component name once per page",
	},

	// ============================================
	// Insertion Errors (A010-A019)
	// ============================================

	"A010": {
		Category:   CategoryInsertion,
		Message:    "Child slot not found",
		Suggestion: "Add ${children} to the parent template where child components belong",
	},
	"A011": {
		Category: CategoryInsertion,
		Message:  "Parent is not an initialized component",
	},

	// ============================================
	// Props Errors (A020-A029)
	// ============================================

	"A020": {
		Category:   CategoryProps,
		Message:    "Malformed props attribute",
		Suggestion: "Use a comma separated list, e.g. props=\"name,count\"",
	},

	// ============================================
	// Declaration Errors (A030-A039)
	// ============================================

	"A030": {
		Category: CategoryDeclaration,
		Message:  "Component document could not be loaded",
	},
	"A031": {
		Category:   CategoryDeclaration,
		Message:    "Component document has no template source",
		Suggestion: "Put the template source inside the first <pre> element of the document",
	},

	// ============================================
	// Configuration Errors (A040-A049)
	// ============================================

	"A040": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create alpml.json (or alpml.yaml) in the project directory",
	},
	"A041": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// ============================================
	// CLI Errors (A050-A059)
	// ============================================

	"A050": {
		Category:   CategoryCLI,
		Message:    "Invalid attribute override",
		Suggestion: "Overrides look like tag.attribute=value, e.g. alp-counter.count=10",
	},
	"A051": {
		Category:   CategoryCLI,
		Message:    "Project file already exists",
		Suggestion: "Run init in an empty directory or pass --force to overwrite",
	},
	"A052": {
		Category:   CategoryCLI,
		Message:    "Unknown project template",
		Suggestion: "Run 'alpml init --list' to see the available templates",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
