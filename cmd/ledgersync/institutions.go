package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/ledgersync/internal/cli"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/spf13/cobra"
)

func institutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "institutions",
		Short: "List banks available in a country",
		Long: `List the banks Enable Banking can connect to in a country.

Examples:
  ledgersync institutions --country FI
  ledgersync institutions --country SE --psu-type business`,
		RunE: runInstitutions,
	}

	cmd.Flags().String("country", "FI", "ISO 3166 two-letter country code")
	cmd.Flags().String("psu-type", "", "Only show banks supporting this PSU type (personal/business)")

	return cmd
}

func runInstitutions(cmd *cobra.Command, _ []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}

	country, _ := cmd.Flags().GetString("country")
	psuType, _ := cmd.Flags().GetString("psu-type")
	country = strings.ToUpper(country)

	institutions := enablebanking.InstitutionsOrEmpty(cmd.Context(), client, country)
	if len(institutions) == 0 {
		fmt.Println(cli.FormatWarning("No institutions found for " + country))
		return nil
	}

	fmt.Println(cli.FormatTitle("Institutions in " + country))
	table := cli.NewTable(os.Stdout, "Name", "PSU Types", "Max Consent", "Auth Methods")
	for _, inst := range institutions {
		if psuType != "" && !contains(inst.PSUTypes, psuType) {
			continue
		}
		maxDays := "-"
		if days := inst.MaxConsentDays(); days > 0 {
			maxDays = strconv.Itoa(days) + " days"
		}
		methods := make([]string, 0, len(inst.AuthMethods))
		for _, m := range inst.AuthMethods {
			methods = append(methods, m.Name)
		}
		name := inst.Name
		if inst.Beta {
			name += " (beta)"
		}
		table.Row(name, strings.Join(inst.PSUTypes, ","), maxDays, strings.Join(methods, ","))
	}
	return table.Flush()
}

func countriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List countries with supported banks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}

			countries := enablebanking.CountriesOrEmpty(cmd.Context(), client)
			if len(countries) == 0 {
				fmt.Println(cli.FormatWarning("No supported countries returned"))
				return nil
			}

			table := cli.NewTable(os.Stdout, "Code", "Country")
			for _, c := range countries {
				table.Row(c.Code, c.Name)
			}
			return table.Flush()
		},
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
