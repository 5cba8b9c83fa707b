// Package config loads docrag settings from YAML, .env and environment
// variables, and turns them into tokenizer tables, a strategy selector and
// searcher options.
package config
