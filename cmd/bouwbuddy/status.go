package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bouwbuddy/bouwbuddy/internal/config"
	"github.com/bouwbuddy/bouwbuddy/internal/storage"
	"github.com/bouwbuddy/bouwbuddy/internal/summarize"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bouwbuddy system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			// Still show what we can.
			printError("config error: %v", err)
			return nil
		}
		showStatus(cmd.Context(), cfg)
		return nil
	},
}

func showStatus(ctx context.Context, cfg config.Config) {
	client := &http.Client{Timeout: 2 * time.Second}
	printStatus("Server", "%s", serverState(ctx, client, cfg.Server.Port))

	if err := cfg.RequireBot(); err != nil {
		printStatus("Config", "%v", err)
	} else {
		printStatus("Config", "ok")
	}

	backend := strings.ToLower(cfg.Summarizer.Backend)
	model := cfg.Summarizer.Model
	if model == "" {
		model = "(default)"
	}
	printStatus("Summarizer", "%s, model %s, timeout %s", backend, model, cfg.Summarizer.Timeout)
	switch backend {
	case summarize.BackendOllama:
		printStatus("Ollama", "%s", ollamaState(ctx, cfg.Summarizer.OllamaBaseURL, cfg.Summarizer.Model))
	case summarize.BackendOpenRouter, "":
		printStatus("OpenRouter", "%s", openRouterState(ctx, cfg.Summarizer.OpenRouterAPIKey, cfg.Summarizer.Model, ""))
	}

	printStatus("Storage", "%s", cfg.Storage.Driver)
	if strings.EqualFold(cfg.Storage.Driver, "sqlite") || cfg.Storage.Driver == "" {
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		if err := showStoreStatus(ctx, cfg.Storage.DataDir); err != nil {
			printStatus("Database", "error: %v", err)
		}
	}

	chats := "disabled"
	if ids, err := cfg.ReportChatIDs(); err != nil {
		chats = err.Error()
	} else if len(ids) > 0 {
		chats = fmt.Sprintf("%s to %d chats", cfg.Schedule.DailyAt, len(ids))
	}
	printStatus("Daily push", "%s", chats)
}

func serverState(ctx context.Context, client *http.Client, port int) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/health", port), nil)
	if err != nil {
		return "stopped"
	}
	resp, err := client.Do(req)
	if err != nil {
		return "stopped"
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("error (HTTP %d)", resp.StatusCode)
	}
	return fmt.Sprintf("running on port %d", port)
}

func ollamaState(ctx context.Context, baseURL, model string) string {
	o := summarize.NewOllama(baseURL, model)
	c := o.Client()
	if !c.IsRunning(ctx) {
		return fmt.Sprintf("not running at %s", baseURL)
	}
	if !c.HasModel(ctx, o.Model()) {
		return fmt.Sprintf("running at %s, model %s not pulled", baseURL, o.Model())
	}
	return fmt.Sprintf("running at %s, model %s ready", baseURL, o.Model())
}

// openRouterState checks the model list. An empty baseURL uses the public
// endpoint.
func openRouterState(ctx context.Context, apiKey, model, baseURL string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o := summarize.NewOpenRouter(apiKey, model, baseURL)
	if err := o.CheckModel(ctx); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("model %s available", o.Model())
}

func showStoreStatus(ctx context.Context, dataDir string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.CountReports(ctx)
	if err != nil {
		return err
	}
	printStatus("Reports", "%d", n)

	versions, err := store.AppliedMigrations()
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		printStatus("Schema", "v%d (%d migrations)", versions[len(versions)-1], len(versions))
	}

	sums, err := store.ListSummaries(ctx, 1)
	if err != nil {
		return err
	}
	if len(sums) > 0 {
		printStatus("Last report", "%s at %s", sums[0].Window, sums[0].CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
