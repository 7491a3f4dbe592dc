// Package config loads the resender run settings.
//
// Settings are layered: built-in defaults, an optional YAML file, a .env
// file in the working directory and finally environment variables such as
// DRY_RUN, INTERACTIVE_MODE, EXCLUSION_FILE, MAX_EMAILS_PER_RECIPIENT and
// SEND_DELAY. Command line flags are applied on top by the cmd package.
package config
