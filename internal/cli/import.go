package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/ariefcatur/go-retail-orders/internal/tasks"
	"github.com/spf13/cobra"
)

var (
	importPartner int64
	importURL     string
	importQueue   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a partner price list",
	Long: `Import fetches the price list at --url and replaces the catalog of the
retailer owned by --partner.

By default the import runs in this process and prints the summary. With
--queue the task is published for the worker instead and its id printed.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int64Var(&importPartner, "partner", 0, "User id of the retailer account")
	importCmd.Flags().StringVar(&importURL, "url", "", "Price list URL (http or https)")
	importCmd.Flags().BoolVar(&importQueue, "queue", false, "Queue the import for the worker instead of running it")
	_ = importCmd.MarkFlagRequired("partner")
	_ = importCmd.MarkFlagRequired("url")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, log := setup()
	ctx := cmd.Context()
	req := pricelist.Request{PartnerID: importPartner, URL: importURL}
	if err := pricelist.ValidateRequest(req); err != nil {
		return err
	}

	if importQueue {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		prod := kafkax.NewProducer(cfg.KafkaBrokers, tasks.TopicImport, 1, log.Named("kafka.producer"))
		prod.Start()
		defer prod.WaitClosed()
		defer prod.Close()

		q := tasks.NewQueue(map[tasks.Kind]tasks.Publisher{tasks.KindImportPriceList: prod},
			tasks.NewStatusStore(rdb, cfg.TaskStatusTTL), "retailctl", log.Named("tasks"))
		id, err := q.EnqueueImport(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued task %s\n", id)
		return nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	im := pricelist.NewImporter(&catalog.Repo{DB: db},
		pricelist.NewHTTPFetcher(cfg.ImportFetchTimeout, cfg.ImportMaxBytes), log.Named("importer"))
	sum, err := im.Import(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
