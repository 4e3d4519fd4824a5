package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/dermascan-cli/internal/store"
)

var (
	storedLimit int
	storedJSON  bool
	showSize    bool
	showDate    bool
)

// storedCmd represents the stored command
var storedCmd = &cobra.Command{
	Use:   "stored",
	Short: "List images kept by the local analysis service",
	Long: `List the uploads held by the storage backend the serve command uses,
newest first.

Examples:
  dermascan stored                 # Table output
  dermascan stored --limit 10      # Only the ten newest uploads
  dermascan stored --json          # Machine readable output`,
	Args: cobra.NoArgs,
	RunE: listStored,
}

func init() {
	rootCmd.AddCommand(storedCmd)

	storedCmd.Flags().IntVarP(&storedLimit, "limit", "l", 0, "maximum number of images to list (0 for all)")
	storedCmd.Flags().BoolVar(&storedJSON, "json", false, "print JSON instead of a table")
	storedCmd.Flags().BoolVar(&showSize, "size", true, "show file sizes")
	storedCmd.Flags().BoolVar(&showDate, "date", true, "show modification dates")
}

func listStored(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := store.FromConfig(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	objects, err := st.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if storedLimit > 0 && len(objects) > storedLimit {
		objects = objects[:storedLimit]
	}

	if storedJSON {
		if objects == nil {
			objects = []store.Object{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(objects)
	}
	return outputTable(cmd.OutOrStdout(), objects)
}

func outputTable(out io.Writer, objects []store.Object) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := "NAME"
	if showSize {
		header += "\tSIZE"
	}
	if showDate {
		header += "\tMODIFIED"
	}
	fmt.Fprintln(w, header)

	for _, obj := range objects {
		line := obj.Name
		if showSize {
			line += fmt.Sprintf("\t%s", humanize.Bytes(uint64(obj.Size)))
		}
		if showDate {
			line += fmt.Sprintf("\t%s", obj.Modified.Format(time.RFC3339))
		}
		fmt.Fprintln(w, line)
	}

	return w.Flush()
}
