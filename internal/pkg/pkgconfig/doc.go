// Package pkgconfig provides a small abstraction for reading configuration values.
//
// The application expects config values to come from a concrete implementation
// (for example Viper). Business code should depend on the Config interface so it
// stays easy to test and does not care where values come from (file, env, etc).
//
// Values are resolved in this order: explicit Set, environment variables (dots
// replaced by underscores, e.g. SERVER_ADDRESS_HTTP), the config file, then
// the defaults passed to NewViper.
package pkgconfig
