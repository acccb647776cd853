package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/modpack-installer/internal/auth"
	"github.com/example/modpack-installer/internal/sshkeys"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API bearer token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Set the API token; a random one is generated and printed when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			t, err := auth.NewToken()
			if err != nil {
				return err
			}
			token = t
		}
		d, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := auth.SetToken(ctx, d, token); err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(token)
		}
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the SSH key used to reach servers",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the public key, generating the pair if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, err := sshkeys.EnsureKeyPair(globalConfig.SSH.KeyPath)
		if err != nil {
			return err
		}
		fmt.Println(pub)
		return nil
	},
}

var keysRegenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Replace the key pair and print the new public key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, err := sshkeys.RegenerateKeyPair(globalConfig.SSH.KeyPath)
		if err != nil {
			return err
		}
		fmt.Println(pub)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	keysCmd.AddCommand(keysShowCmd, keysRegenerateCmd)
	rootCmd.AddCommand(tokenCmd, keysCmd)
}
