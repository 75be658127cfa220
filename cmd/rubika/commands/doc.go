// Package commands implements the rubika CLI.
//
// Settings come from built-in defaults, then .env, then RUBIKA_* variables,
// then command-line flags.
package commands
