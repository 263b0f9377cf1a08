package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bouwbuddy/bouwbuddy/internal/api"
	"github.com/bouwbuddy/bouwbuddy/internal/composer"
	"github.com/bouwbuddy/bouwbuddy/internal/config"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// --- report ---

var reportCmd = &cobra.Command{
	Use:       "report <daily|weekly>",
	Short:     "Generate a summary report on the running server",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"daily", "weekly"},
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := fieldreport.ParseWindow(args[0])
		if err != nil {
			return err
		}
		client, err := clientFromConfig()
		if err != nil {
			return err
		}
		return runReport(cmd.Context(), client, win, os.Stdout)
	},
}

func runReport(ctx context.Context, client *apiClient, win fieldreport.Window, w io.Writer) error {
	printStep("Generating the %s Report...", win.Title())
	resp, err := client.post(ctx, "/reports/generate?window="+url.QueryEscape(string(win)))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		printWarning("No updates submitted in the %s window", win)
		return nil
	}

	var res api.GenerateResponse
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	fmt.Fprintln(w, res.Body)
	if len(res.Media) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Photos:")
		for _, m := range res.Media {
			fmt.Fprintf(w, "  %s  %s\n", m.Ref, m.Caption)
		}
	}
	printSuccess("%s report generated from %d updates", win.Title(), res.RecordCount)
	return nil
}

// --- reports ---

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List or export submitted field reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the field reports in a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := windowFlag(cmd)
		if err != nil {
			return err
		}
		client, err := clientFromConfig()
		if err != nil {
			return err
		}
		return runReportsList(cmd.Context(), client, win, os.Stdout)
	},
}

func runReportsList(ctx context.Context, client *apiClient, win fieldreport.Window, w io.Writer) error {
	resp, err := client.get(ctx, "/reports?window="+url.QueryEscape(string(win)))
	if err != nil {
		return err
	}
	var res api.RecordsResponse
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}

	if len(res.Records) == 0 {
		printWarning("No reports in the %s window", win)
		return nil
	}
	for _, r := range res.Records {
		fmt.Fprintf(w, "%s  %s (%s, %s) at %s, %sh\n",
			r.SubmittedAt.Local().Format("2006-01-02 15:04"),
			r.Name, r.Function, r.Company, r.Location, composer.FormatHours(r.Hours))
		fmt.Fprintf(w, "    %s\n", composer.TruncateRunes(r.TaskDescription, 120))
	}
	printStatus("Reports", "%d", res.Count)
	return nil
}

var reportsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the field reports in a window as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := windowFlag(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		client, err := clientFromConfig()
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		n, err := runReportsExport(cmd.Context(), client, win, w)
		if err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d bytes to %s", n, output)
		}
		return nil
	},
}

func runReportsExport(ctx context.Context, client *apiClient, win fieldreport.Window, w io.Writer) (int64, error) {
	resp, err := client.get(ctx, "/reports/export?window="+url.QueryEscape(string(win)))
	if err != nil {
		return 0, err
	}
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("writing export: %w", err)
	}
	return n, nil
}

func windowFlag(cmd *cobra.Command) (fieldreport.Window, error) {
	raw, _ := cmd.Flags().GetString("window")
	return fieldreport.ParseWindow(raw)
}

func clientFromConfig() (*apiClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg)
}

func init() {
	for _, c := range []*cobra.Command{reportsListCmd, reportsExportCmd} {
		c.Flags().String("window", "daily", "report window: daily or weekly")
	}
	reportsExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsExportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		printConfig(os.Stdout, cfg)
		return nil
	},
}

func printConfig(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "# %s\n", config.Path())
	for _, k := range config.ShowAll(cfg) {
		fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
	}
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configSetCmd.Long = "Set a configuration value in " + config.Path() + ".\n\nKeys:\n  " +
		strings.Join(config.ValidKeys(), "\n  ") +
		"\n\nSecrets are read from the environment and cannot be set here."
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
