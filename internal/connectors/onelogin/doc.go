// Package onelogin reads users and roles from a OneLogin account through the
// OneLogin API v1. Roles are reported as groups.
package onelogin
