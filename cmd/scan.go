package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/logging"
	"github.com/kozaktomas/face-finder/internal/progress"
	"github.com/kozaktomas/face-finder/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan <owner-id>",
	Short: "Scan photos for the owner's face",
	Long: `Scan a photo set for the owner using their face profile.

Photos come either from a YAML manifest (--photos) or from a PhotoPrism album
(--album, requires PHOTOPRISM_DATABASE_URL). A manifest is a list of photos:

  - id: IMG_0001
    url: https://example.com/IMG_0001.jpg
    uploaded_at: 2026-08-01T12:00:00Z

Results of the last completed scan are cached and reused when neither the photo
set nor the profile changed. Press Ctrl+C to cancel; the scan stops at the next
photo boundary and nothing is cached. With the default memory backend
(STORAGE_BACKEND=memory) neither profiles nor cached results survive the command.

Examples:
  face-finder scan alice --photos photos.yaml
  face-finder scan alice --album aq8i4fx1a2b3c4d5 --force --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("photos", "", "YAML manifest of photos to scan")
	scanCmd.Flags().String("album", "", "PhotoPrism album UID to scan")
	scanCmd.Flags().Bool("force", false, "Ignore cached results")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.MarkFlagsMutuallyExclusive("photos", "album")
	scanCmd.MarkFlagsOneRequired("photos", "album")
}

// loadManifest reads a YAML list of photo records.
func loadManifest(path string) ([]facematch.PhotoRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var photos []facematch.PhotoRecord
	if err := yaml.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	for i, p := range photos {
		if p.ID == "" || p.URL == "" {
			return nil, fmt.Errorf("manifest entry %d: id and url are required", i+1)
		}
	}
	return photos, nil
}

func resolveScanPhotos(ctx context.Context, cfg *config.Config, manifest, albumUID string) ([]facematch.PhotoRecord, error) {
	if manifest != "" {
		return loadManifest(manifest)
	}

	source, closeSource, err := openPhotoSource(cfg)
	if err != nil {
		return nil, err
	}
	defer closeSource()
	if source == nil {
		return nil, errors.New("PHOTOPRISM_DATABASE_URL is required for album scans")
	}
	photos, err := source.AlbumPhotos(ctx, albumUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list album %s: %w", albumUID, err)
	}
	return photos, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ownerID := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	photos, err := resolveScanPhotos(ctx, cfg, mustGetString(cmd, "photos"), mustGetString(cmd, "album"))
	if err != nil {
		return err
	}

	svc, err := openCLIServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	token := scan.NewCancellationToken()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			token.Cancel()
		}
	}()

	var reporter scan.Reporter = progress.NewLog(logging.Logger())
	if !jsonOutput {
		reporter = progress.Multi{progress.NewBar(os.Stderr), reporter}
	}

	res, err := svc.orchestrator.Scan(ctx, scan.Request{
		OwnerID: ownerID,
		Photos:  photos,
		Force:   mustGetBool(cmd, "force"),
	}, reporter, token)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(scanOutput{Result: res, Errors: res.ErrorMessages()})
	}
	printScanResult(res)
	return nil
}

type scanOutput struct {
	*scan.Result
	Errors []string `json:"errors,omitempty"`
}

// printScanResult prints matches as a human-readable table.
func printScanResult(res *scan.Result) {
	source := "computed"
	if res.FromCache {
		source = "cached"
	}
	fmt.Printf("\n%d matches in %d photos (%s, signature %s)\n\n", len(res.Matches), res.Total, source, res.Signature.Short())

	if len(res.Matches) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PHOTO\tCONFIDENCE\tTYPE")
		fmt.Fprintln(w, "-----\t----------\t----")
		for _, m := range res.Matches {
			fmt.Fprintf(w, "%s\t%.2f%%\t%s\n", m.PhotoID, m.Confidence*100, m.MatchType)
		}
		w.Flush()
	}

	if len(res.Errors) > 0 {
		fmt.Printf("\n%d photos could not be compared:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
}
