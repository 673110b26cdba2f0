package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/chatops/internal/profile"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "chatops",
		Short: "A chat assistant that answers DevOps questions using ArgoCD, GitHub and Harbor.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			p, err := profile.Load(viper.GetViper(), cfgFile)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			instanceProfile = p
			setupLogger(p, cmd.ErrOrStderr())
			return nil
		},
	}

	instanceProfile *profile.Profile
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("model", "gpt-4o-mini", "LLM model")
	rootCmd.PersistentFlags().Int("token-budget", 500, "conversation memory token budget")
	rootCmd.PersistentFlags().String("session-store", profile.StoreMemory, "session store: memory, redis or sqlite")

	bindFlag("mode", "mode")
	bindFlag("log.level", "log-level")
	bindFlag("log.format", "log-format")
	bindFlag("llm.model", "model")
	bindFlag("memory.token_budget", "token-budget")
	bindFlag("session.store", "session-store")

	rootCmd.AddCommand(newServeCmd(), newChatCmd())
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
