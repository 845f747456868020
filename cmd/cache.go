package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-finder/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Scan result cache commands",
	Long:  `Commands for inspecting and invalidating the per-owner scan result cache.`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <owner-id>",
	Short: "Show the owner's cached scan result",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheShow,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <owner-id>",
	Short: "Drop the owner's cached scan result",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheInvalidate,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd, cacheInvalidateCmd)

	cacheShowCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openCLIServices(ctx, config.Load())
	if err != nil {
		return err
	}
	defer svc.Close()

	entry, err := svc.cache.Peek(ctx, args[0])
	if err != nil {
		return err
	}
	if entry == nil {
		fmt.Printf("No cached results for %s\n", args[0])
		return nil
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(entry)
	}

	fmt.Printf("Signature: %s\n", entry.Signature)
	fmt.Printf("Computed:  %s\n", entry.ComputedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Matches:   %d\n\n", len(entry.Results))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tCONFIDENCE\tTYPE")
	fmt.Fprintln(w, "-----\t----------\t----")
	for _, r := range entry.Results {
		fmt.Fprintf(w, "%s\t%.2f%%\t%s\n", r.PhotoID, r.Confidence*100, r.MatchType)
	}
	w.Flush()
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openCLIServices(ctx, config.Load())
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.cache.Invalidate(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Invalidated cached results for %s\n", args[0])
	return nil
}
