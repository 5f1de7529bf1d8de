// Package cmd provides the command-line interface for Nachos.
package cmd

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "nachos",
	Short: "Nachos emulates the memory system of a MIPS machine and replays " +
		"workloads on it.",
	Long: `Nachos emulates the memory system of a MIPS machine: a software ` +
		`managed TLB, an inverted page table, and the kernel pager that ` +
		`refills them. Flags not given on the command line are read from ` +
		`NACHOS_* environment variables, which may be set in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")

		return loadEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to read NACHOS_* defaults from.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// envName returns the environment variable that provides the default of a
// flag.
func envName(flag string) string {
	return "NACHOS_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnvDefaults sets the flags that were not given on the command line from
// the environment.
func applyEnvDefaults(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			continue
		}

		value, ok := os.LookupEnv(envName(name))
		if !ok {
			continue
		}

		err := cmd.Flags().Set(name, value)
		if err != nil {
			return err
		}
	}

	return nil
}
