package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/dirigera-bridge/version"
)

var _versionCmdOpts struct {
	asJSON bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version of the bridge",

	RunE: func(cmd *cobra.Command, args []string) error {
		return doVersion()
	},
}

func init() {
	versionCmd.Flags().BoolVar(&_versionCmdOpts.asJSON, "json", false, "Return version as JSON")
	errPanic(viper.GetViper().BindPFlag("version.json", versionCmd.Flags().Lookup("json")))

	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version   string `json:"version"`
	UserAgent string `json:"userAgent"`
	GoVersion string `json:"goVersion"`
}

func doVersion() error {
	v := versionResult{
		Version:   version.Version,
		UserAgent: version.UserAgent(),
		GoVersion: runtime.Version(),
	}

	if !viper.GetBool("version.json") {
		fmt.Printf("dirigera-bridge version %s (%s)\n", v.Version, v.GoVersion)
		return nil
	}

	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))

	return nil
}
