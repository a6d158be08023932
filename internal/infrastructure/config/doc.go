// Package config handles loading and validating Customo Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (CUSTOMO_* and the storefront's
//     conventional names such as PORT, JWT_SECRET and FRONTEND_URL)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (JWT secret, admin password, broker credentials) should
//     be set via environment variables or a .env file, never committed
//   - The JWT secret must be at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
package config
