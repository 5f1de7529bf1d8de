package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/nachos/machine"
)

var checkEndianCmd = &cobra.Command{
	Use:   "check-endian",
	Short: "Check that the host byte order matches the configuration.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		err := applyEnvDefaults(cmd, "host-big-endian")
		if err != nil {
			log.Fatalf("Error reading defaults: %v", err)
		}

		bigEndian, _ := cmd.Flags().GetBool("host-big-endian")

		err = machine.CheckEndian(bigEndian)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Host byte order matches.")
	},
}

func init() {
	checkEndianCmd.Flags().Bool("host-big-endian", false,
		"Whether the host is configured as big-endian.")

	rootCmd.AddCommand(checkEndianCmd)
}
