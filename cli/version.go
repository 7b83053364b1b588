package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"playground.evalgo.org/version"
)

func init() {
	RootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("deps", false, "include dependency versions")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetBuildInfo()

		withDeps, _ := cmd.Flags().GetBool("deps")
		if !withDeps {
			info.Dependencies = nil
		}

		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
