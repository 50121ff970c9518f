// Package secrets provides SecureStore implementations for directory
// credentials: a dotenv file (the default) and HashiCorp Vault KV v2.
package secrets
