package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Veraticus/ledgersync/internal/cli"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List linked accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.store.ListAccounts(ctx, model.ProviderEnableBanking)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Println(cli.FormatInfo("No linked accounts. Run: ledgersync consent start"))
				return nil
			}

			table := cli.NewTable(os.Stdout, "ID", "Name", "Balance", "Transactions", "Last Synced")
			for _, acc := range accounts {
				count, err := a.store.CountTransactions(ctx, acc.ID)
				if err != nil {
					return fmt.Errorf("failed to count transactions: %w", err)
				}
				lastSynced := "never"
				if acc.LastSyncedAt != nil {
					lastSynced = acc.LastSyncedAt.Local().Format(time.DateTime)
				}
				balance := "-"
				if acc.Balance.Currency != "" {
					balance = acc.Balance.String()
				}
				table.Row(acc.ID, acc.Name, balance, strconv.Itoa(count), lastSynced)
			}
			return table.Flush()
		},
	}
}
