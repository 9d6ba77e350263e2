// Package config holds the settings of the inboxreply run command.
//
// Every setting has a command-line flag and an environment variable. The
// variable only applies when the flag was not given explicitly. A .env
// file in the working directory is loaded first, so GMAIL_ADDRESS and the
// other variables can live there.
package config
