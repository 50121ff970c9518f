// Package ldap reads users and groups from an LDAP server or Active
// Directory. It binds natively with go-ldap (simple or GSSAPI) or, for
// Kerberos setups that rely on the system Kerberos stack, shells out to
// ldapsearch and parses its LDIF output.
package ldap
