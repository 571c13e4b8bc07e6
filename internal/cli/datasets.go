package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List and manage datasets",
	Long: `List datasets, register new ones, upload files, and trigger ingestion.

Examples:
  askdata datasets
  askdata datasets register "Q3 Orders"
  askdata datasets upload ds_orders ./orders.csv
  askdata datasets ingest ds_orders
  askdata datasets catalog ds_orders`,
	RunE: runDatasetsList,
}

var datasetsRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsRegister,
}

var datasetsUploadCmd = &cobra.Command{
	Use:   "upload <dataset-id> <file>",
	Short: "Upload a file for a dataset",
	Args:  cobra.ExactArgs(2),
	RunE:  runDatasetsUpload,
}

var datasetsIngestCmd = &cobra.Command{
	Use:   "ingest <dataset-id>",
	Short: "Trigger ingestion of uploaded data",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsIngest,
}

var datasetsCatalogCmd = &cobra.Command{
	Use:   "catalog <dataset-id>",
	Short: "Show the dataset's tables and columns",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsCatalog,
}

func init() {
	datasetsCmd.AddCommand(datasetsRegisterCmd)
	datasetsCmd.AddCommand(datasetsUploadCmd)
	datasetsCmd.AddCommand(datasetsIngestCmd)
	datasetsCmd.AddCommand(datasetsCatalogCmd)
}

func runDatasetsList(cmd *cobra.Command, args []string) error {
	datasets := gw.ListDatasets(context.Background())
	if len(datasets) == 0 {
		fmt.Print(unreachableHint())
		fmt.Println("No datasets found.")
		return nil
	}

	fmt.Printf("%-12s %-24s %-12s %s\n", "ID", "NAME", "STATUS", "LAST INGEST")
	fmt.Println("----------------------------------------------------------------")
	for _, d := range datasets {
		lastIngest := "-"
		if d.LastIngestAt != nil {
			lastIngest = d.LastIngestAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-12s %-24s %-12s %s\n", d.ID, d.Name, d.Status, lastIngest)
	}
	return nil
}

func runDatasetsRegister(cmd *cobra.Command, args []string) error {
	ds := gw.RegisterDataset(context.Background(), args[0])
	if ds == nil {
		fmt.Print(unreachableHint())
		return fmt.Errorf("dataset not registered")
	}
	fmt.Printf("Registered %s (%s)\n", ds.ID, ds.Name)
	return nil
}

func runDatasetsUpload(cmd *cobra.Command, args []string) error {
	datasetID, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if !gw.UploadDataset(context.Background(), datasetID, filepath.Base(path), f) {
		fmt.Print(unreachableHint())
		return fmt.Errorf("upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", filepath.Base(path), datasetID)
	return nil
}

func runDatasetsIngest(cmd *cobra.Command, args []string) error {
	job := gw.TriggerIngest(context.Background(), args[0])
	if job == nil {
		fmt.Print(unreachableHint())
		return fmt.Errorf("ingestion not started")
	}
	fmt.Printf("Ingest job %s started (%s)\n", job.ID, job.Status)
	fmt.Println(defaultTheme.hintStyle().Render("Follow it with: askdata jobs --watch"))
	return nil
}

func runDatasetsCatalog(cmd *cobra.Command, args []string) error {
	catalog := gw.Catalog(context.Background(), args[0])
	if catalog == nil {
		fmt.Print(unreachableHint())
		return fmt.Errorf("catalog unavailable")
	}

	if len(catalog.Tables) == 0 {
		fmt.Println("No tables; has the dataset been ingested?")
		return nil
	}
	for _, t := range catalog.Tables {
		fmt.Println(defaultTheme.headerStyle().Render(t.Name))
		for _, c := range t.Columns {
			fmt.Printf("  %-20s %s\n", c.Name, c.Type)
		}
	}
	return nil
}
