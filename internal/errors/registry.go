package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

// Error codes.
const (
	CodeConfigNotFound  = "E100"
	CodeConfigParse     = "E101"
	CodeConfigInvalid   = "E102"
	CodeBindFailed      = "E110"
	CodeDirectoryAccess = "E120"
	CodeBucketClient    = "E130"
	CodeInvalidFlag     = "E140"
)

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Configuration (E100-E109)
	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Pass --config with the path to yhttpd.json or run without it to use defaults",
	},
	CodeConfigParse: {
		Category:   CategoryConfig,
		Message:    "Configuration file is not valid JSON",
		Suggestion: "Check that yhttpd.json is valid JSON",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// Startup (E110-E139)
	CodeBindFailed: {
		Category:   CategoryStartup,
		Message:    "Unable to bind the listening socket",
		Suggestion: "Use another port, or 0 to let the system pick one",
	},
	CodeDirectoryAccess: {
		Category: CategoryStartup,
		Message:  "Unable to access the served directory",
	},
	CodeBucketClient: {
		Category:   CategoryStartup,
		Message:    "Unable to create the S3 client",
		Suggestion: "Check the AWS credentials and region in the environment",
	},

	// CLI (E140-E149)
	CodeInvalidFlag: {
		Category: CategoryCLI,
		Message:  "Invalid command-line flag",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
