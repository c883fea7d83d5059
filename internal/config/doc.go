// ABOUTME: Package documentation for configuration loading
// ABOUTME: Describes the YAML format, env expansion, and validation rules

// Package config loads and validates the iqc-gateway configuration.
//
// Configuration is a YAML file:
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//
//	database:
//	  path: "./data/iqc.db"
//
//	auth:
//	  jwt_secret: "${IQC_JWT_SECRET}"
//	  token_ttl: "24h"
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// ${VAR_NAME} references are expanded from the environment before parsing;
// unset variables expand to the empty string and fail validation if the field
// is required. Duration fields use Go duration syntax. server.http_addr,
// database.path, and auth.jwt_secret are required.
package config
