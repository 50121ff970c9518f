// Package importapi submits directory import requests to the organization
// public API.
//
// The client logs in with the organization API key using the OAuth2
// client-credentials grant against the identity service, then posts each
// request to /public/organization/import with the bearer token.
package importapi
