// Package shell hands control to the GUI shell once the backend is up.
//
// Exec runs the configured GUI command in the foreground. It inherits the
// launcher's stdio and environment, including the exported backend port, and
// is asked to stop when the context is cancelled (SIGINT/SIGTERM to the
// launcher). Wait is used when no command is configured: the launcher then
// keeps the backend alive until it is signalled.
//
// In both cases Run returns nil for a stop the launcher asked for, and an
// error only when the shell itself failed.
package shell
