package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"valeads-engine/internal/export"
	"valeads-engine/internal/pipeline"
	"valeads-engine/internal/secrets"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openCSV(path string) (*os.File, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, errors.New("Files must be in CSV format.")
	}
	return os.Open(path)
}

func createIngestCmd() *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "ingest <general.csv> <filtered.csv>",
		Short: "Merge transaction CSV exports into the store",
		Long: "With two files, loads the general and filtered transaction exports the same way\n" +
			"POST /upload_csvs does. With --dataset, loads one file into that dataset.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataset == "" && len(args) != 2 {
				return errors.New("Both CSV files are required.")
			}
			if dataset != "" && len(args) != 1 {
				return errors.New("--dataset takes exactly one file")
			}

			a, err := openApp(cmd.Context(), dataDirFlag)
			if err != nil {
				return err
			}
			defer a.close()

			files := make([]*os.File, 0, len(args))
			defer func() {
				for _, f := range files {
					_ = f.Close()
				}
			}()
			for _, p := range args {
				f, err := openCSV(p)
				if err != nil {
					return err
				}
				files = append(files, f)
			}

			var rep *pipeline.Report
			if dataset != "" {
				rep, err = a.svc.Ingest(cmd.Context(), dataset, files[0])
			} else {
				cfg := a.config()
				rep, err = a.svc.IngestTransactions(cmd.Context(),
					pipeline.Upload{Dataset: cfg.Upload.General, Body: files[0]},
					pipeline.Upload{Dataset: cfg.Upload.Filtered, Body: files[1]},
				)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "load a single file into this dataset")
	return cmd
}

func createListingsCmd() *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "listings <listings.csv>",
		Short: "Load an MLS listings export and refresh the financing-filtered set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), dataDirFlag)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := openCSV(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if dataset == "" {
				dataset = a.config().Filter.Source
			}
			rep, err := a.svc.IngestListings(cmd.Context(), dataset, f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "listings dataset (default filter.source)")
	return cmd
}

func createReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild the reconciled dataset from the stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), dataDirFlag)
			if err != nil {
				return err
			}
			defer a.close()

			rep, err := a.svc.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func createExportCmd() *cobra.Command {
	var (
		out   string
		sheet bool
	)

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Render a configured export to CSV or publish it to its sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), dataDirFlag)
			if err != nil {
				return err
			}
			defer a.close()

			name := args[0]
			if sheet {
				rows, err := a.svc.PublishSheet(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d rows of %s\n", rows, name)
				return nil
			}

			s, filename, err := a.svc.Export(cmd.Context(), name)
			if err != nil {
				return err
			}
			if out == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), s)
			}
			if out == "" {
				out = filename
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteCSV(f, s); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(s.Rows), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", `output file, "-" for stdout (default <name>_MM-DD-YYYY.csv)`)
	cmd.Flags().BoolVar(&sheet, "sheet", false, "publish to the configured sheet range instead")
	return cmd
}

func createPurgeCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "purge [dataset]",
		Short: "Delete one dataset, or every dataset with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("name one dataset or pass --all")
			}

			a, err := openApp(cmd.Context(), dataDirFlag)
			if err != nil {
				return err
			}
			defer a.close()

			if all {
				if err := a.svc.DeleteAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted all datasets")
				return nil
			}
			if err := a.svc.DeleteDataset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every dataset")
	return cmd
}

func createSecretCmd() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the storage password in the OS keychain",
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Read the postgres password from stdin and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := keyringAccount()
			if err != nil {
				return err
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if err := secrets.SetStoragePassword(account, strings.TrimRight(line, "\r\n")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored password for %s\n", account)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored postgres password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := keyringAccount()
			if err != nil {
				return err
			}
			if err := secrets.DeleteStoragePassword(account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted password for %s\n", account)
			return nil
		},
	}

	secretCmd.AddCommand(setCmd, deleteCmd)
	return secretCmd
}

// keyringAccount reads only the config; the store stays closed.
func keyringAccount() (string, error) {
	_, load, err := loadConfig(resolveDataDir(dataDirFlag))
	if err != nil {
		return "", err
	}
	cfg, err := load()
	if err != nil {
		return "", err
	}
	return secrets.StorageKeyringAccount(cfg), nil
}
