package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/config"
	"github.com/kalambet/artisan/internal/pipeline"
	"github.com/kalambet/artisan/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the running server a question about the catalog",
	Long: `Ask the running server a question about the catalog.

Examples:
  artisan ask "Quels tajines viennent de Safi ?"
  artisan ask --raw "Avez-vous des calligraphies coufiques ?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		answer, err := askQuestion(cmd.Context(), client, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if raw {
			fmt.Println(answer.Text)
			return nil
		}
		fmt.Print(renderMarkdown(answer.Text))
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("raw", false, "print the Markdown answer without terminal rendering")
}

func askQuestion(ctx context.Context, c *apiClient, question string) (pipeline.Response, error) {
	resp, err := c.post(ctx, "/ask", map[string]string{"question": question})
	if err != nil {
		return pipeline.Response{}, err
	}
	var answer pipeline.Response
	if err := decodeJSON(resp, &answer); err != nil {
		return pipeline.Response{}, err
	}
	return answer, nil
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Build the index in-process and print the most similar catalog documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.Retrieval.TopK
		}

		ctx := cmd.Context()
		svc, err := buildService(ctx, cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer svc.Close()

		results, err := svc.Search(ctx, strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s %s [score: %.3f]\n",
				colorize(colorBold, fmt.Sprintf("Result %d", i+1)),
				colorize(colorCyan, r.ID),
				r.Score,
			)
			for _, line := range strings.Split(r.Text, "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum number of results (default retrieval.top_k)")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and catalog status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// Still show partial status even if config fails.
			printError("config error: %v", err)
			return nil
		}

		st, err := fetchStatus(cmd.Context(), clientFor(cfg))
		if err != nil {
			printStatus("Server", "stopped")
			printStatus("Backend", "%s", cfg.Engine.Backend)
			printStatus("Chat model", "%s", cfg.ChatModel())
			printStatus("Embed model", "%s", cfg.EmbedModel())
			return nil
		}
		printServiceStatus(cfg, st)
		return nil
	},
}

func fetchStatus(ctx context.Context, c *apiClient) (pipeline.Status, error) {
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return pipeline.Status{}, err
	}
	var st pipeline.Status
	if err := decodeJSON(resp, &st); err != nil {
		return pipeline.Status{}, err
	}
	return st, nil
}

func printServiceStatus(cfg config.Config, st pipeline.Status) {
	if st.Ready {
		printStatus("Server", "running on %s", cfg.Addr())
	} else {
		printStatus("Server", "%s on %s (%s)", colorize(colorRed, "unavailable"), cfg.Addr(), st.Cause)
	}
	printStatus("Backend", "%s", st.Backend)
	printStatus("Chat model", "%s", st.ChatModel)
	printStatus("Embed model", "%s", st.EmbedModel)
	printStatus("Index", "%s", st.IndexBackend)
	printStatus("Documents", "%d indexed, %d dropped", st.Documents, st.Dropped)
	for _, t := range st.Tables {
		if t.Error != "" {
			printStatus("  "+t.Name, "%s", colorize(colorYellow, t.Error))
			continue
		}
		printStatus("  "+t.Name, "%d records", t.Records)
	}
	if !st.BuiltAt.IsZero() {
		printStatus("Built at", "%s", st.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	}
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or export the catalog tables",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and normalize the catalog tables without any model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		records, reports, err := loadRecords(cfg)
		for _, r := range reports {
			if r.Err != nil {
				printError("%s (%s): %v", r.Name, r.Path, r.Err)
				continue
			}
			printSuccess("%s (%s): %d records", r.Name, r.Path, r.Records)
		}
		if err != nil {
			return err
		}
		printStep("%d records ready for indexing", len(records))
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show [reference]",
	Short: "Show one catalog entry from the running server, or a page of entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/catalog?limit=%d&offset=%d", limit, offset)
		if len(args) == 1 {
			path = "/catalog/" + url.PathEscape(args[0])
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var out any
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the normalized catalog as a workbook or a SQLite database",
	Long: `Export the normalized catalog as a workbook or a SQLite database.

Examples:
  artisan catalog export --output catalogue.xlsx
  artisan catalog export --format sqlite --output ./export`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			return fmt.Errorf("--output is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		records, _, err := loadRecords(cfg)
		if err != nil {
			return err
		}

		dest, err := exportCatalog(cmd.Context(), records, format, output)
		if err != nil {
			return err
		}
		printSuccess("Exported %d records to %s", len(records), dest)
		return nil
	},
}

func init() {
	catalogShowCmd.Flags().Int("limit", 20, "entries per page when no reference is given")
	catalogShowCmd.Flags().Int("offset", 0, "first entry of the page")
	catalogExportCmd.Flags().String("format", "xlsx", "export format: xlsx or sqlite")
	catalogExportCmd.Flags().String("output", "", "output file (xlsx) or directory (sqlite)")
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogExportCmd)
}

func loadRecords(cfg config.Config) ([]catalog.Record, []catalog.TableReport, error) {
	m, err := loadManifest(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog manifest: %w", err)
	}
	return catalog.Load(m, cfg.Catalog.DataDir)
}

// exportCatalog writes records in the given format and returns the path
// written. The SQLite export refuses to overwrite an existing database.
func exportCatalog(ctx context.Context, records []catalog.Record, format, output string) (string, error) {
	switch format {
	case "xlsx":
		if err := catalog.WriteWorkbook(output, records); err != nil {
			return "", err
		}
		return output, nil
	case "sqlite":
		dest := filepath.Join(output, "catalog.db")
		if _, err := os.Stat(dest); err == nil {
			return "", fmt.Errorf("%s already exists", dest)
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		store, err := storage.Open(output)
		if err != nil {
			return "", err
		}
		defer store.Close()

		docs := catalog.SynthesizeAll(records)
		entries := make([]storage.Entry, len(docs))
		for i, d := range docs {
			entries[i] = storage.Entry{Position: i, Document: d}
		}
		if err := store.SaveEntries(ctx, entries); err != nil {
			return "", err
		}
		return dest, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want xlsx or sqlite)", format)
	}
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

		fmt.Printf("# %s\n", config.ConfigPath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in " + config.ConfigPath() + ".\n\nKeys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
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
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
