package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Veraticus/ledgersync/internal/cli"
	"github.com/Veraticus/ledgersync/internal/config"
	"github.com/Veraticus/ledgersync/internal/keys"
	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the application signing key",
		Long: `Create an RSA private key and a self-signed certificate for registering
an Enable Banking application. Upload public.crt in the Enable Banking
control panel and point enable_banking.private_key_file at private.key.

An existing valid pair is reused.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			name, _ := cmd.Flags().GetString("name")

			m := keys.NewFileManager(config.ExpandPath(dir))
			pair, err := m.GetOrCreate(name)
			if err != nil {
				return err
			}

			if pair.Created {
				fmt.Println(cli.FormatSuccess("Created a new key pair"))
			} else {
				fmt.Println(cli.FormatInfo("Key pair already exists"))
			}
			fmt.Println(cli.RenderBox("Application key",
				"Private key:  "+m.KeyFile()+"\n"+
					"Certificate:  "+m.CertFile()+"\n"+
					"Valid until:  "+pair.NotAfter.Format(time.DateOnly)))
			return nil
		},
	}

	cmd.Flags().String("dir", filepath.Join(config.DefaultDir(), "keys"), "Directory for private.key and public.crt")
	cmd.Flags().String("name", "ledgersync", "Certificate common name")

	return cmd
}
