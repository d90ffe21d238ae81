// Package config provides configuration loading for the faga exporter.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, lowest priority first:
//
//	1. Default values (Default)
//	2. A YAML file (explicit path, or faga.yaml / configs/faga.yaml)
//	3. A .env file in the working directory (does not override exported variables)
//	4. Environment variables prefixed with FAGA_
//	5. Command-line flags, applied by cmd/faga
//
// # Environment Variables
//
// Nested sections follow FAGA_<SECTION>_<FIELD>:
//
//	FAGA_BLS_BATCH_SIZE=50
//	FAGA_BLS_CONCURRENCY=2
//	FAGA_RETRY_ATTEMPTS=3
//	FAGA_RETRY_BACKOFF=1.6
//	FAGA_OUTPUT_DIR=out
//	FAGA_LOGGING_LEVEL=debug
//
// Credentials are also read without the prefix so existing shells keep working:
//
//	BLS_API_KEY=...
//	FRED_API_KEY=...
//
// # Validation
//
// Struct tags are checked with go-playground/validator. Any failure is
// returned as a config-kind pipeline error so the CLI exits with the
// config exit code.
package config
