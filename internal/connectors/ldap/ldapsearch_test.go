package ldap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

func TestLdapsearch_Args(t *testing.T) {
	cfg := &domain.LdapConfig{
		Hostname:          "DC1.example.com",
		Port:              389,
		SSL:               true,
		StartTLS:          true,
		PagedSearch:       true,
		KerberosMechanism: "GSS-SPNEGO",
		LdapsearchPath:    "/usr/bin/ldapsearch",
		KerberosCcache:    "/tmp/krb5cc_test",
	}
	ls := NewLdapsearch(cfg, []string{"objectGUID", "mail"})

	var gotName string
	var gotArgs, gotEnv []string
	ls.run = func(_ context.Context, name string, args, env []string) (string, error) {
		gotName, gotArgs, gotEnv = name, args, env
		return "dn: cn=a,dc=example,dc=com\nmail: a@example.com\n", nil
	}

	entries, err := ls.Search(context.Background(), searchRequest{
		BaseDN:      "dc=example,dc=com",
		Filter:      "(objectClass=person)",
		ShowDeleted: true,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "/usr/bin/ldapsearch", gotName)
	assert.Equal(t, []string{
		"-LLL", "-Y", "GSS-SPNEGO", "-H", "ldap://dc1.example.com:389", "-b", "dc=example,dc=com", "-s", "sub",
		"-ZZ", "-E", "pr=1000/noprompt", "-E", "!1.2.840.113556.1.4.417",
		"(objectClass=person)", "objectGUID", "mail",
	}, gotArgs)
	assert.Contains(t, gotEnv, "KRB5CCNAME=/tmp/krb5cc_test")
}

func TestLdapsearch_TLSEnvironment(t *testing.T) {
	dir := t.TempDir()
	ca := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(ca, []byte("ca"), 0o600))

	cfg := &domain.LdapConfig{
		Hostname:             "dc1",
		Port:                 636,
		SSL:                  true,
		SSLAllowUnauthorized: true,
		SSLCaPath:            ca,
		SSLCertPath:          filepath.Join(dir, "missing.pem"),
	}
	env := NewLdapsearch(cfg, nil).env()

	assert.Contains(t, env, "LDAPTLS_REQCERT=never")
	assert.Contains(t, env, "LDAPTLS_CACERT="+ca)
	assert.NotContains(t, env, "LDAPTLS_CERT="+cfg.SSLCertPath)
}

func TestLdapsearch_FailurePropagates(t *testing.T) {
	ls := NewLdapsearch(&domain.LdapConfig{Hostname: "dc1", Port: 389}, nil)
	ls.run = func(context.Context, string, []string, []string) (string, error) {
		return "", domain.ErrProtocol
	}
	_, err := ls.Search(context.Background(), searchRequest{BaseDN: "dc=x", Filter: "(cn=*)"})
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestExecRun_NonZeroExit(t *testing.T) {
	_, err := execRun(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, os.Environ())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Contains(t, err.Error(), "exit 3")
	assert.Contains(t, err.Error(), "boom")
}
