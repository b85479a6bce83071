// Package config provides configuration loading and validation for fluxkit
// services.
//
// It uses Viper to load configuration from YAML files and environment
// variables, and godotenv to load .env files.
//
// # Usage
//
//	var cfg config.ServiceConfig
//	err := config.LoadConfig("fluxdemo", &cfg)
//
// Environment variables override file values using the FLUXKIT_ prefix with
// underscore-separated paths (e.g., FLUXKIT_SCHEDULERS_PARALLEL_WORKERS).
// Only keys known to the config struct are bound, so the struct must
// implement Defaulter for its keys to be visible to the environment.
package config
