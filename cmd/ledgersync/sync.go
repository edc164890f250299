package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Veraticus/ledgersync/internal/cli"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync linked accounts now",
		Long: `Fetch balances and new transactions for linked accounts immediately,
without waiting for the daily sweep. Each account is retried on transient
failures; its checkpoint only moves when the sync succeeds.`,
		RunE: runSync,
	}

	cmd.Flags().String("account", "", "Only sync this account id")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var ids []string
	if only, _ := cmd.Flags().GetString("account"); only != "" {
		ids = []string{only}
	} else {
		accounts, err := a.store.ListAccounts(ctx, model.ProviderEnableBanking)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, acc := range accounts {
			ids = append(ids, acc.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Println(cli.FormatInfo("No linked accounts to sync"))
		return nil
	}

	bar := cli.NewProgress(os.Stderr, len(ids), cli.SyncIcon+" Syncing accounts...")
	var (
		inserted int
		failures []error
	)
	for _, id := range ids {
		result, err := a.syncer.SyncAccount(ctx, id)
		if err != nil {
			failures = append(failures, fmt.Errorf("account %s: %w", id, err))
		} else {
			inserted += result.Inserted
		}
		_ = bar.Add(1)
	}

	summary := "Accounts synced: " + strconv.Itoa(len(ids)-len(failures)) + "/" + strconv.Itoa(len(ids)) + "\n" +
		"New transactions: " + strconv.Itoa(inserted)
	fmt.Println(cli.RenderBox("Sync complete", summary))

	for _, f := range failures {
		fmt.Println(cli.FormatError(f.Error()))
	}
	return errors.Join(failures...)
}
