package commands

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"steward/internal/version"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of Steward",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("steward %s %s/%s\n", version.Version, goruntime.GOOS, goruntime.GOARCH)
		},
	}
}
