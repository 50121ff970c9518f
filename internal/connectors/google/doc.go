// Package google reads users and groups from Google Workspace through the
// Admin SDK Directory API.
//
// Authentication uses a service account with domain-wide delegation. The
// service account impersonates AdminUser and must be granted these scopes:
//   - https://www.googleapis.com/auth/admin.directory.user.readonly
//   - https://www.googleapis.com/auth/admin.directory.group.readonly
//   - https://www.googleapis.com/auth/admin.directory.group.member.readonly
//
// Users are listed twice per sync, once for current accounts and once with
// showDeleted, so deleted accounts are reported to the import API.
//
// Filters accept a Directory API query after "|", for example
//
//	include:alice@example.com|orgUnitPath='/Engineering'
package google
