// Package locator finds the backend server executable on disk.
//
// The resolver first builds the complete, ordered candidate list from the
// running executable's directory, the working directory, the product name
// and the platform's binary name. Only then is each candidate checked for
// existence; the first regular file wins. Every candidate is logged with its
// status so a failed lookup can be diagnosed from the log alone.
//
// Platform differences (binary suffix, application bundle layout, system-wide
// install paths) are captured in a Profile value chosen once per GOOS, so the
// whole candidate order for any platform can be tested from any host.
//
// Example usage:
//
//	r := locator.NewResolver(locator.Options{Mode: locator.ModeProduction})
//	r.SetLogger(log)
//	path, err := r.Resolve()
//	if errors.Is(err, locator.ErrBackendNotFound) {
//	    // continue without a backend
//	}
package locator
