package cli

import (
	goversion "github.com/caarlos0/go-version"
	"github.com/spf13/cobra"
)

// Build details, set by main from -ldflags.
var (
	version   = ""
	commit    = ""
	buildDate = ""
	builtBy   = ""
)

// SetBuildInfo records the build details printed by the version command.
func SetBuildInfo(v, c, date, by string) {
	version, commit, buildDate, builtBy = v, c, date, by
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoBootstrap: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(buildVersion().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func buildVersion() goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("dirsync", "Directory sync connector", "https://github.com/custodia-labs/dirsync"),
		func(i *goversion.Info) {
			if version != "" {
				i.GitVersion = version
			}
			if commit != "" {
				i.GitCommit = commit
			}
			if buildDate != "" {
				i.BuildDate = buildDate
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}
