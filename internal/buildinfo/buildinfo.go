package buildinfo

import "fmt"

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func String() string {
	return fmt.Sprintf("piday %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
