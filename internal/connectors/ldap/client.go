package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/logger"
)

const (
	// pageSize is the paged-results page size.
	pageSize = 1000

	// DefaultTimeout bounds each LDAP operation.
	DefaultTimeout = 2 * time.Minute
)

// searchRequest is a subtree search.
type searchRequest struct {
	BaseDN      string
	Filter      string
	Attributes  []string
	ShowDeleted bool
}

// searcher runs subtree searches against a bound connection.
type searcher interface {
	Search(ctx context.Context, req searchRequest) ([]*entry, error)
	Close() error
}

// Client is a bound go-ldap connection.
type Client struct {
	conn  *ldap.Conn
	paged bool
}

// Dial connects to the server, upgrades with StartTLS when configured and binds.
func Dial(ctx context.Context, cfg *domain.LdapConfig, password string) (*Client, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	url := serverURL(cfg)
	var conn *ldap.Conn
	if useLDAPS(cfg) {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(url)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", domain.ErrProtocol, url, err)
	}
	conn.SetTimeout(DefaultTimeout)

	if useStartTLS(cfg) {
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: starttls: %w", domain.ErrProtocol, err)
		}
	}

	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, err
	}

	switch cfg.Auth {
	case domain.LdapAuthGSSAPI:
		err = gssapiBind(conn, cfg, password)
	default:
		err = conn.Bind(cfg.Username, password)
	}
	if err != nil {
		conn.Close()
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, fmt.Errorf("%w: ldap bind rejected", domain.ErrAuthenticationFailed)
		}
		return nil, fmt.Errorf("%w: ldap bind: %w", domain.ErrAuthenticationFailed, err)
	}

	logger.Ctx(ctx).Debug().Str("url", url).Str("auth", cfg.Auth).Msg("ldap bound")
	return &Client{conn: conn, paged: cfg.PagedSearch}, nil
}

// Search implements searcher.
func (c *Client) Search(ctx context.Context, req searchRequest) ([]*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var controls []ldap.Control
	if req.ShowDeleted {
		controls = append(controls, ldap.NewControlString(oidShowDeleted, true, ""))
	}
	sr := ldap.NewSearchRequest(
		req.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		req.Filter,
		req.Attributes,
		controls,
	)

	var (
		res *ldap.SearchResult
		err error
	)
	if c.paged {
		res, err = c.conn.SearchWithPaging(sr, pageSize)
	} else {
		res, err = c.conn.Search(sr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %w", domain.ErrProtocol, req.BaseDN, err)
	}

	out := make([]*entry, 0, len(res.Entries))
	for _, le := range res.Entries {
		e := newEntry(le.DN)
		for _, a := range le.Attributes {
			for _, v := range a.ByteValues {
				e.add(a.Name, v)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Close unbinds and closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	_ = c.conn.Unbind()
	c.conn.Close()
	c.conn = nil
	return nil
}

// buildTLSConfig maps the ssl* settings for LDAPS and the tls* settings
// for StartTLS. Paths that do not exist are ignored.
func buildTLSConfig(cfg *domain.LdapConfig) (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         strings.TrimSpace(cfg.Hostname),
		InsecureSkipVerify: cfg.SSLAllowUnauthorized, //nolint:gosec // operator opt-in
		MinVersion:         tls.VersionTLS12,
	}

	caPath := cfg.SSLCaPath
	if cfg.StartTLS {
		caPath = cfg.TLSCaPath
	}
	if fileExists(caPath) {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", domain.ErrInvalidInput, caPath)
		}
		tc.RootCAs = pool
	}

	if !cfg.StartTLS && fileExists(cfg.SSLCertPath) && fileExists(cfg.SSLKeyPath) {
		cert, err := tls.LoadX509KeyPair(cfg.SSLCertPath, cfg.SSLKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// gssapiBind binds with Kerberos using the credential cache, then the
// keytab, then the password.
func gssapiBind(conn *ldap.Conn, cfg *domain.LdapConfig, password string) error {
	username, realm := cfg.Username, cfg.KerberosRealm
	if realm == "" {
		if at := strings.LastIndex(username, "@"); at > 0 {
			username, realm = username[:at], username[at+1:]
		}
	}
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	if !fileExists(krb5conf) {
		return fmt.Errorf("%w: kerberos configuration not found at %s", domain.ErrConfigIncomplete, krb5conf)
	}

	var (
		client *gssapi.Client
		err    error
	)
	switch {
	case fileExists(cfg.KerberosCcache):
		client, err = gssapi.NewClientFromCCache(cfg.KerberosCcache, krb5conf, krb5client.DisablePAFXFAST(true))
	case fileExists(cfg.KerberosKeytab):
		client, err = gssapi.NewClientWithKeytab(username, realm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	case username != "" && password != "":
		client, err = gssapi.NewClientWithPassword(username, realm, password, krb5conf, krb5client.DisablePAFXFAST(true))
	default:
		return fmt.Errorf("%w: no kerberos credentials (ccache, keytab or password)", domain.ErrConfigIncomplete)
	}
	if err != nil {
		return fmt.Errorf("kerberos client: %w", err)
	}
	defer func() { _ = client.DeleteSecContext() }()

	return conn.GSSAPIBind(client, "ldap/"+strings.TrimSpace(cfg.Hostname), "")
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
