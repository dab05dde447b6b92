// Package config handles configuration loading for oakledger.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	provider:
//	  client_secret: "${OAKLEDGER_CLIENT_SECRET}"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  addr: "0.0.0.0:8080"
//	  shutdown_timeout: "15s"
//
// Identity provider:
//
//	provider:
//	  region: "ap-south-1"
//	  user_pool_id: "ap-south-1_AbCdEf123"
//	  client_id: "client-abc123"
//	  client_secret: "${OAKLEDGER_CLIENT_SECRET}"
//	  admin_group: "admin"
//
// Identity pools for credential federation:
//
//	pools:
//	  regular: "ap-south-1:1111-2222"
//	  admin: "ap-south-1:3333-4444"
//
// Cloud storage:
//
//	storage:
//	  profiles_table: "profiles"
//	  assets_table: "assets"
//	  liabilities_table: "liabilities"
//	  media_bucket: "oakledger-media"
//
// Local audit trail:
//
//	audit:
//	  path: "/var/lib/oakledger/audit.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// The issuer, signing-key set URL and federation login key are derived from
// the provider section; see ProviderConfig.
package config
