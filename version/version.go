package version

// Version represents the Major.Minor.Patch version tag
// from GIT, supplied by the Makefile - else 'dev' as a
// default
var Version string = "dev"

// UserAgent is sent on every upstream hub and proxy request
func UserAgent() string {
	return "dirigera-bridge/" + Version
}
