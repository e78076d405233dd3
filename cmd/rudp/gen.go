package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1ureka/rudp/internal/app"
	"github.com/1ureka/rudp/internal/util"
)

var (
	genOutput string
	genSize   string
)

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().StringVarP(&genOutput, "output", "o", "data.bin", "path of the generated file")
	genCmd.Flags().StringVarP(&genSize, "size", "s", "2MiB", "file size, e.g. 2MiB or 512K")
}

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a file of random bytes to send",
	RunE: func(_ *cobra.Command, _ []string) error {
		size, err := app.ParseSize(genSize)
		if err != nil {
			return err
		}
		return generate(genOutput, size)
	},
}

func generate(path string, size int) error {
	if err := app.GenerateFile(path, size); err != nil {
		return fmt.Errorf("gen failed: %w", err)
	}
	util.LogSuccess("wrote %d random bytes to %s", size, path)
	return nil
}
