// Package config implements configuration loading for the telemetry service.
//
// Configuration starts from a baseline (Defaults), is overlaid with an optional
// YAML file and finally with environment variables. The POSTGRES_* variables
// keep the names used by existing deployments; everything else is ROADWATCH_*.
// The merged result is checked by Validate before use.
package config
