// Package entra reads users and groups from Microsoft Entra ID through the
// Microsoft Graph API.
//
// Authentication uses the OAuth2 client-credentials grant against the public
// or government cloud identity authority. Deleted users are discovered with
// the /users/delta feed, whose delta link is returned to the caller so the
// next sync resumes from it.
package entra
