package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vango-dev/alpml"
)

// buildInfo describes the running binary.
type buildInfo struct {
	CLI       string `json:"cli"`
	Library   string `json:"library"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		CLI:       version,
		Library:   alpml.Version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func versionCmd() *cobra.Command {
	var (
		short  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the CLI and library versions together with build details.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeVersion(cmd.OutOrStdout(), currentBuild(), short, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the CLI version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build details as JSON")

	return cmd
}

func writeVersion(w io.Writer, info buildInfo, short, asJSON bool) error {
	switch {
	case short:
		_, err := fmt.Fprintln(w, info.CLI)
		return err
	case asJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	rows := [][2]string{
		{"CLI", info.CLI},
		{"Library", info.Library},
		{"Commit", info.Commit},
		{"Built", info.Built},
		{"Go", info.GoVersion},
		{"Platform", info.Platform},
	}
	fmt.Fprint(w, banner)
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "  %-9s %s\n", row[0]+":", row[1]); err != nil {
			return err
		}
	}
	return nil
}
