// Package okta reads users and groups from an Okta organization through the
// Okta management API, authenticating with an SSWS API token.
//
// Incremental syncs add a lastUpdated clause to the user and group filters.
// Group member lookups are paced to stay under the organization rate limits.
package okta
