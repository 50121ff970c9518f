// Package connectors holds the directory adapters. Each subpackage reads
// users and groups from one identity provider (LDAP, Entra ID, Google
// Workspace, Okta, OneLogin) and returns them as domain entries.
//
// Adapters are registered with the Factory at startup.
package connectors
