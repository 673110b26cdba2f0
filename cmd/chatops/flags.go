package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func bindCmdFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}
