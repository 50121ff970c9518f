package connectors

import (
	"github.com/custodia-labs/dirsync/internal/connectors/entra"
	"github.com/custodia-labs/dirsync/internal/connectors/google"
	"github.com/custodia-labs/dirsync/internal/connectors/ldap"
	"github.com/custodia-labs/dirsync/internal/connectors/okta"
	"github.com/custodia-labs/dirsync/internal/connectors/onelogin"
	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// RegisterBuiltins registers every bundled directory adapter with f.
func RegisterBuiltins(f *Factory) {
	f.Register(domain.DirectoryLdap, ldap.New)
	f.Register(domain.DirectoryEntraID, entra.New)
	f.Register(domain.DirectoryGSuite, google.New)
	f.Register(domain.DirectoryOkta, okta.New)
	f.Register(domain.DirectoryOneLogin, onelogin.New)
}

// NewDefaultFactory returns a factory with every bundled adapter registered.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	RegisterBuiltins(f)
	return f
}
