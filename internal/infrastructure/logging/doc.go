// Package logging provides structured logging for the launcher.
//
// It wraps log/slog with the launcher's defaults: text or JSON records,
// level filtering, and service/version attributes on every record. A desktop
// launch often has no console, so records can also be appended to a file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stdout, stderr, none
//	  file:
//	    path: "~/.cache/sim8085/launcher.log"
//
// Usage:
//
//	logger, err := logging.New(cfg.Logging, version)
//	if err != nil {
//	    logger.Warn("log file unavailable", "error", err)
//	}
//	defer logger.Close()
package logging
