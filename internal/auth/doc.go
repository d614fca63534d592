// Package auth issues and validates the bearer tokens of the control API.
//
// There are no user accounts. The launcher creates a Signer with a random
// HS256 secret at startup, issues one token for the GUI shell and hands it
// over through the environment. Tokens die with the process that signed
// them, so a restart invalidates every token it ever issued.
//
// Roles map to a fixed permission set:
//
//	shell    full read access and the event stream
//	monitor  metrics and the event stream only
package auth
