// Package config loads runtime configuration for the OTPKeeper CLI.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by -c or -config.
//  3. A .env file in the working directory, then OTPKEEPER_* environment
//     variables.
//  4. Command-line flags.
//
// Supported flags
//
//	-d string   path of the SQLite vault file
//	-t string   time service URL (empty disables network time)
//	-s int      time sync interval in seconds
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations accept strings like "60s" or integer nanoseconds:
//
//	{
//	  "database_path": "otpkeeper.db",
//	  "time_endpoint": "https://worldtimeapi.org/api/ip",
//	  "time_sync_interval": "60s",
//	  "time_timeout": "5s",
//	  "summer_time": false,
//	  "log_level": "info",
//	  "log_format": "text",
//	  "backup": {"bucket": "otpkeeper", "endpoint": "http://127.0.0.1:9000",
//	             "region": "us-east-1", "object": "vault.json"}
//	}
package config
