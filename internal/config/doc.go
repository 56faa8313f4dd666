// Package config provides centralized configuration management for the
// account daemon: a YAML file describing the managed account, storage and
// bus drivers, logging behaviour and runtime paths, with sensible defaults
// applied for anything left unset.
package config
