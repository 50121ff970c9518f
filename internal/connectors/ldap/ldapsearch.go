package ldap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args, env []string) (string, error)

// Ldapsearch queries through the OpenLDAP ldapsearch binary so that SASL
// mechanisms and credential caches of the host Kerberos stack are used.
type Ldapsearch struct {
	cfg   *domain.LdapConfig
	attrs []string
	run   runFunc
}

// NewLdapsearch creates an ldapsearch-backed searcher. attrs is the
// attribute list requested on every search.
func NewLdapsearch(cfg *domain.LdapConfig, attrs []string) *Ldapsearch {
	return &Ldapsearch{cfg: cfg, attrs: attrs, run: execRun}
}

// Search implements searcher.
func (l *Ldapsearch) Search(ctx context.Context, req searchRequest) ([]*entry, error) {
	args := l.args(req)
	out, err := l.run(ctx, l.path(), args, l.env())
	if err != nil {
		return nil, err
	}
	return parseLDIF(out), nil
}

// Close implements searcher.
func (l *Ldapsearch) Close() error { return nil }

func (l *Ldapsearch) path() string {
	if p := strings.TrimSpace(l.cfg.LdapsearchPath); p != "" {
		return p
	}
	return "ldapsearch"
}

func (l *Ldapsearch) args(req searchRequest) []string {
	mechanism := strings.TrimSpace(l.cfg.KerberosMechanism)
	if mechanism == "" {
		mechanism = "GSSAPI"
	}
	args := []string{"-LLL", "-Y", mechanism, "-H", serverURL(l.cfg), "-b", req.BaseDN, "-s", "sub"}
	if useStartTLS(l.cfg) {
		args = append(args, "-ZZ")
	}
	if l.cfg.PagedSearch {
		args = append(args, "-E", fmt.Sprintf("pr=%d/noprompt", pageSize))
	}
	if req.ShowDeleted {
		// "!" marks the control critical.
		args = append(args, "-E", "!"+oidShowDeleted)
	}
	args = append(args, req.Filter)
	return append(args, l.attrs...)
}

func (l *Ldapsearch) env() []string {
	env := os.Environ()
	if l.cfg.SSLAllowUnauthorized {
		env = append(env, "LDAPTLS_REQCERT=never")
	}

	caPath := ""
	switch {
	case useLDAPS(l.cfg):
		caPath = l.cfg.SSLCaPath
	case l.cfg.StartTLS:
		caPath = l.cfg.TLSCaPath
	}
	if fileExists(caPath) {
		env = append(env, "LDAPTLS_CACERT="+caPath)
	}
	if useLDAPS(l.cfg) {
		if fileExists(l.cfg.SSLCertPath) {
			env = append(env, "LDAPTLS_CERT="+l.cfg.SSLCertPath)
		}
		if fileExists(l.cfg.SSLKeyPath) {
			env = append(env, "LDAPTLS_KEY="+l.cfg.SSLKeyPath)
		}
	}
	if cc := strings.TrimSpace(l.cfg.KerberosCcache); cc != "" {
		env = append(env, "KRB5CCNAME="+cc)
	}
	return env
}

func execRun(ctx context.Context, name string, args, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Ctx(ctx).Debug().Str("command", name).Strs("args", args).Msg("running ldapsearch")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: ldapsearch failed (exit %d). %s",
				domain.ErrProtocol, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%w: run ldapsearch: %w", domain.ErrProtocol, err)
	}
	return stdout.String(), nil
}
