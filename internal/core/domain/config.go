package domain

// PublicConfig is the non-secret configuration of one directory.
// The secret field of each config is always the StoredSecurely placeholder
// or empty; the real value travels separately as a SecretConfig.
type PublicConfig interface {
	DirectoryType() DirectoryType
}

// StoredSecurely replaces secret fields in persisted public configuration.
const StoredSecurely = "[STORED SECURELY]"

// SecretConfig is the single sensitive field of a directory configuration.
type SecretConfig struct {
	Type  DirectoryType
	Value string
}

// LDAP authentication modes.
const (
	LdapAuthSimple   = "simple"
	LdapAuthKerberos = "kerberos"
	LdapAuthGSSAPI   = "gssapi"
)

// LdapConfig configures an LDAP or Active Directory server.
type LdapConfig struct {
	Hostname             string `json:"hostname"`
	Port                 int    `json:"port,omitempty" default:"389"`
	RootPath             string `json:"rootPath"`
	AD                   bool   `json:"ad"`
	SSL                  bool   `json:"ssl"`
	StartTLS             bool   `json:"startTls"`
	SSLAllowUnauthorized bool   `json:"sslAllowUnauthorized"`
	SSLCaPath            string `json:"sslCaPath"`
	SSLCertPath          string `json:"sslCertPath"`
	SSLKeyPath           string `json:"sslKeyPath"`
	TLSCaPath            string `json:"tlsCaPath"`
	PagedSearch          bool   `json:"pagedSearch" default:"true"`
	Username             string `json:"username"`
	Password             string `json:"password"`

	// Auth is "simple", "kerberos" (external ldapsearch) or "gssapi" (native bind).
	Auth              string `json:"auth,omitempty" default:"simple"`
	LdapsearchPath    string `json:"ldapsearchPath,omitempty" default:"ldapsearch"`
	KerberosMechanism string `json:"kerberosMechanism,omitempty" default:"GSSAPI"`
	KerberosCcache    string `json:"kerberosCcache"`
	KerberosKeytab    string `json:"kerberosKeytab"`
	KerberosRealm     string `json:"kerberosRealm"`
	KerberosConfig    string `json:"kerberosConfig,omitempty" default:"/etc/krb5.conf"`
}

func (LdapConfig) DirectoryType() DirectoryType { return DirectoryLdap }

// EntraConfig configures a Microsoft Entra ID tenant.
type EntraConfig struct {
	ApplicationID     string `json:"applicationId"`
	Key               string `json:"key"`
	Tenant            string `json:"tenant"`
	IdentityAuthority string `json:"identityAuthority,omitempty" default:"login.microsoftonline.com"`
}

func (EntraConfig) DirectoryType() DirectoryType { return DirectoryEntraID }

// GoogleConfig configures a Google Workspace service account.
type GoogleConfig struct {
	ClientEmail string `json:"clientEmail"`
	PrivateKey  string `json:"privateKey"`
	AdminUser   string `json:"adminUser"`
	Domain      string `json:"domain"`
	Customer    string `json:"customer"`
}

func (GoogleConfig) DirectoryType() DirectoryType { return DirectoryGSuite }

// OktaConfig configures an Okta organization.
type OktaConfig struct {
	OrgURL string `json:"orgUrl"`
	Token  string `json:"token"`
}

func (OktaConfig) DirectoryType() DirectoryType { return DirectoryOkta }

// OneLoginConfig configures a OneLogin account.
type OneLoginConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Region       string `json:"region,omitempty" default:"us"`
}

func (OneLoginConfig) DirectoryType() DirectoryType { return DirectoryOneLogin }

// NewPublicConfig returns an empty config for t.
func NewPublicConfig(t DirectoryType) (PublicConfig, error) {
	switch t {
	case DirectoryLdap:
		return &LdapConfig{}, nil
	case DirectoryEntraID:
		return &EntraConfig{}, nil
	case DirectoryGSuite:
		return &GoogleConfig{}, nil
	case DirectoryOkta:
		return &OktaConfig{}, nil
	case DirectoryOneLogin:
		return &OneLoginConfig{}, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// SyncConfig holds the sync options shared by every directory type, plus
// the LDAP attribute mappings.
type SyncConfig struct {
	Users  bool `json:"users"`
	Groups bool `json:"groups"`

	// Interval between scheduled syncs, in minutes.
	Interval int `json:"interval,omitempty" default:"5"`

	UserFilter        string `json:"userFilter"`
	GroupFilter       string `json:"groupFilter"`
	RemoveDisabled    bool   `json:"removeDisabled"`
	OverwriteExisting bool   `json:"overwriteExisting"`
	LargeImport       bool   `json:"largeImport"`

	// BatchSize bounds each request when LargeImport is set.
	BatchSize int `json:"batchSize,omitempty" default:"2000"`

	UserObjectClass       string `json:"userObjectClass,omitempty" default:"person"`
	GroupObjectClass      string `json:"groupObjectClass,omitempty" default:"group"`
	UserPath              string `json:"userPath"`
	GroupPath             string `json:"groupPath"`
	GroupNameAttribute    string `json:"groupNameAttribute,omitempty" default:"name"`
	MemberAttribute       string `json:"memberAttribute,omitempty" default:"member"`
	UserEmailAttribute    string `json:"userEmailAttribute,omitempty" default:"mail"`
	UseEmailPrefixSuffix  bool   `json:"useEmailPrefixSuffix"`
	EmailPrefixAttribute  string `json:"emailPrefixAttribute,omitempty" default:"cn"`
	EmailSuffix           string `json:"emailSuffix,omitempty" default:"@companyname.com"`
	RevisionDateAttribute string `json:"revisionDateAttribute"`
}
