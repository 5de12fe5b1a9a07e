// Package errors provides structured, actionable error messages for the
// yhttpd command.
//
// Every error has a code (e.g., "E102") that maps to a short message and a
// category. Callers add the offending config field, a detail line and a hint:
//
//	err := errors.New("E102").
//	    WithField("folders[1].dir").
//	    WithDetail("directory ./www does not exist").
//	    WithSuggestion("Create the directory or fix the path in yhttpd.json")
//
//	errors.Print(os.Stderr, err)
//	// Output:
//	// ERROR E102: Invalid configuration value
//	//
//	//   folders[1].dir
//	//
//	//   directory ./www does not exist
//	//
//	//   Hint: Create the directory or fix the path in yhttpd.json
package errors
