package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skeletor-js/medulla/internal/cache"
	"github.com/skeletor-js/medulla/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a medulla project in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := os.Getwd()
		if err != nil {
			return err
		}

		st, err := store.Init(root)
		if err != nil {
			return err
		}
		defer st.Close()

		c, err := cache.Open(st.Dir())
		if err != nil {
			return err
		}
		defer c.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized medulla project in %s\n", st.Dir())
		return nil
	},
}
