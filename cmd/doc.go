// Package cmd implements the command-line interface of dSync. It provides
// commands to read and write documents of a shared document store and to
// watch collections in real time.
//
// The package is organized into several subpackages:
//
//   - document: Commands for document operations (get, getall, add, set, del, rekey)
//   - watch: Command that mirrors a collection and prints every change
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an environment variable of the form
// DSYNC_<FLAG> (e.g. DSYNC_REDIS_ADDR=localhost:6379). The files .env and
// .env.local are loaded on startup.
//
// See dsync -help for a list of all commands.
package cmd
