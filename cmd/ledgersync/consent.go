package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/ledgersync/internal/cli"
	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/consent"
	"github.com/Veraticus/ledgersync/internal/linking"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/spf13/cobra"
)

const defaultSessionKey = "default"

func consentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Connect a bank account",
		Long: `Connect a bank through Enable Banking in three steps:

  1. consent start     prints the bank URL to open in a browser
  2. consent complete  takes the URL the bank redirected back to
  3. consent confirm   links the accounts you pick

Without redis.addr configured the account list only lives inside one
process, so pass --all or --account to "consent complete" instead of
running "consent confirm" separately.`,
	}

	cmd.AddCommand(consentStartCmd())
	cmd.AddCommand(consentCompleteCmd())
	cmd.AddCommand(consentConfirmCmd())

	return cmd
}

func consentStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start authorization with a bank",
		RunE:  runConsentStart,
	}

	cmd.Flags().String("institution-id", "", "Institution identifier, kept for reference")
	cmd.Flags().String("institution", "", "Institution name as listed by the institutions command")
	cmd.Flags().String("country", "", "Institution country code")
	cmd.Flags().String("psu-type", "personal", "PSU type (personal/business)")
	cmd.Flags().String("auth-method", "", "Authentication method name")
	cmd.Flags().Int("max-validity", 0, "Requested consent validity in days (capped at 90)")
	cmd.Flags().String("session", defaultSessionKey, "Key the pending consent is stored under")
	_ = cmd.MarkFlagRequired("institution")
	_ = cmd.MarkFlagRequired("country")

	return cmd
}

func runConsentStart(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := consent.NewManager(a.client, cfg.EnableBanking.RedirectURL)
	if err != nil {
		return err
	}

	req := consent.InitiateRequest{}
	req.InstitutionID, _ = cmd.Flags().GetString("institution-id")
	req.InstitutionName, _ = cmd.Flags().GetString("institution")
	req.InstitutionCountry, _ = cmd.Flags().GetString("country")
	req.PSUType, _ = cmd.Flags().GetString("psu-type")
	req.AuthMethod, _ = cmd.Flags().GetString("auth-method")
	req.MaxConsentValidityDays, _ = cmd.Flags().GetInt("max-validity")
	req.InstitutionCountry = strings.ToUpper(req.InstitutionCountry)
	session, _ := cmd.Flags().GetString("session")

	started, err := manager.Initiate(ctx, req)
	if err != nil {
		return err
	}

	if err := a.store.SaveConsent(ctx, session, started.Consent); err != nil {
		return fmt.Errorf("failed to save consent request: %w", err)
	}

	fmt.Println(cli.RenderBox("Authorize access",
		"Open this URL to log in at "+req.InstitutionName+":\n\n"+
			started.RedirectURL+"\n\n"+
			cli.SubtleStyle.Render("Consent valid until "+started.Consent.ExpiresAt.Format(time.DateOnly))))
	return nil
}

func consentCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete [callback-url]",
		Short: "Finish authorization with the bank's redirect",
		Long: `Finish authorization using the URL the bank redirected to, or its
code and state parameters.

Examples:
  ledgersync consent complete "https://example.com/callback?code=...&state=..."
  ledgersync consent complete --code abc --state 1234 --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConsentComplete,
	}

	cmd.Flags().String("code", "", "Authorization code")
	cmd.Flags().String("state", "", "State token")
	cmd.Flags().String("error", "", "Error reported by the bank")
	cmd.Flags().String("session", defaultSessionKey, "Key the pending consent was stored under")
	cmd.Flags().Bool("all", false, "Link every account the bank granted")
	cmd.Flags().StringSlice("account", nil, "Link these account uids right away")

	return cmd
}

func runConsentComplete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	params, err := callbackParams(cmd, args)
	if err != nil {
		return err
	}
	linkAll, _ := cmd.Flags().GetBool("all")
	chosen, _ := cmd.Flags().GetStringSlice("account")
	session, _ := cmd.Flags().GetString("session")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openCache(ctx); err != nil {
		return err
	}
	if !a.sharedCache() && !linkAll && len(chosen) == 0 {
		return common.NewUserError("redis.addr is not configured; pass --all or --account to link in one step", common.ErrConfiguration)
	}

	stored, err := a.store.TakeConsent(ctx, session)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewUserError("no pending consent for session "+session+"; run consent start first", err)
		}
		return err
	}

	key, pending, err := a.newExchange().CompleteCallback(ctx, params, *stored)
	if err != nil {
		return err
	}

	printSelection(key, pending)

	if linkAll {
		chosen = chosen[:0]
		for _, acc := range pending.Accounts {
			chosen = append(chosen, acc.UID)
		}
	}
	if len(chosen) == 0 {
		fmt.Println(cli.FormatInfo("Run: ledgersync consent confirm --key " + key + " --account <uid>"))
		return nil
	}
	return confirm(cmd, a, key, chosen)
}

func callbackParams(cmd *cobra.Command, args []string) (consent.CallbackParams, error) {
	if len(args) == 1 {
		return consent.ParseCallbackURL(args[0])
	}
	var params consent.CallbackParams
	params.Code, _ = cmd.Flags().GetString("code")
	params.State, _ = cmd.Flags().GetString("state")
	params.Error, _ = cmd.Flags().GetString("error")
	if params.State == "" {
		return params, fmt.Errorf("%w: pass the callback URL or --state", common.ErrValidation)
	}
	return params, nil
}

func printSelection(key string, pending *model.PendingSelection) {
	fmt.Println(cli.FormatTitle(pending.InstitutionName + " granted access to"))
	table := cli.NewTable(os.Stdout, "UID", "Name", "IBAN", "Currency", "Type")
	for _, acc := range pending.Accounts {
		table.Row(acc.UID, acc.Name, acc.IBAN, acc.Currency, acc.CashAccountType)
	}
	_ = table.Flush()
	fmt.Println(cli.SubtleStyle.Render("Selection key: " + key + " (expires in 5 minutes)"))
}

func consentConfirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Link the chosen accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			key, _ := cmd.Flags().GetString("key")
			chosen, _ := cmd.Flags().GetStringSlice("account")

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.openCache(ctx); err != nil {
				return err
			}
			if !a.sharedCache() {
				return common.NewUserError("consent confirm needs redis.addr; use consent complete --account instead", common.ErrConfiguration)
			}
			return confirm(cmd, a, key, chosen)
		},
	}

	cmd.Flags().String("key", "", "Selection key printed by consent complete")
	cmd.Flags().StringSlice("account", nil, "Account uid to link (repeatable)")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func confirm(cmd *cobra.Command, a *app, key string, chosen []string) error {
	importer, err := a.newImporter()
	if err != nil {
		return err
	}

	result, err := importer.Confirm(cmd.Context(), key, chosen)
	if result != nil {
		printImportResult(result)
	}
	return err
}

func printImportResult(result *linking.ImportResult) {
	for _, acc := range result.Linked {
		fmt.Println(cli.FormatSuccess(cli.LinkIcon + " Linked " + acc.Name + " (" + acc.ExternalID + ")"))
	}
	for _, f := range result.ImportFailed {
		fmt.Println(cli.FormatWarning("Initial import failed for " + f.ExternalID + ", next sync will retry: " + f.Err.Error()))
	}
	for _, f := range result.Failed {
		fmt.Println(cli.FormatError("Could not link " + f.ExternalID + ": " + f.Err.Error()))
	}
	if !result.NextSync.IsZero() {
		fmt.Println(cli.FormatInfo("Next daily sync at " + result.NextSync.Local().Format(time.DateTime)))
	}
}
