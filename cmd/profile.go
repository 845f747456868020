package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/facematch"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Face profile management commands",
	Long: `Commands for managing per-owner face profiles.
A profile is a set of at least two reference photos with quality scores.

Profiles are kept in the storage backend selected by STORAGE_BACKEND. The default
memory backend forgets them when the command exits; use postgres or firestore to
keep profiles between invocations.`,
}

var profileBuildCmd = &cobra.Command{
	Use:   "build <owner-id>",
	Short: "Create a profile from reference photos",
	Long: `Create a face profile from reference photo URLs.
Photos without exactly one usable face are skipped; at least two must remain.

Examples:
  face-finder profile build alice --photo https://example.com/a.jpg --photo https://example.com/b.jpg
  face-finder profile build alice --photo a.jpg,b.jpg,c.jpg --method guided`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileBuild,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <owner-id>",
	Short: "Add reference photos to a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfileUpdate(cmd, args[0], func(ctx context.Context, svc *services, urls []string) (*facematch.FaceProfile, error) {
			return svc.profiles.AddPhotos(ctx, args[0], urls)
		})
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <owner-id>",
	Short: "Remove reference photos from a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfileUpdate(cmd, args[0], func(ctx context.Context, svc *services, urls []string) (*facematch.FaceProfile, error) {
			return svc.profiles.RemovePhotos(ctx, args[0], urls)
		})
	},
}

var profileOptimizeCmd = &cobra.Command{
	Use:   "optimize <owner-id>",
	Short: "Drop low-quality reference photos",
	Long: `Drop reference photos scoring below --min-quality (PROFILE_MIN_QUALITY by default).
The two best photos are always kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileOptimize,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <owner-id>",
	Short: "Delete a profile and its cached scan results",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <owner-id>",
	Short: "Show a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileBuildCmd, profileAddCmd, profileRemoveCmd, profileOptimizeCmd, profileDeleteCmd, profileShowCmd)

	for _, c := range []*cobra.Command{profileBuildCmd, profileAddCmd, profileRemoveCmd} {
		c.Flags().StringSlice("photo", nil, "Reference photo URL (repeatable)")
		_ = c.MarkFlagRequired("photo")
	}
	profileBuildCmd.Flags().String("method", string(facematch.MethodUploaded), "Capture method: guided or uploaded")
	profileOptimizeCmd.Flags().Float64("min-quality", 0, "Minimum quality to keep (defaults to PROFILE_MIN_QUALITY)")

	for _, c := range []*cobra.Command{profileBuildCmd, profileAddCmd, profileRemoveCmd, profileOptimizeCmd, profileShowCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
	}
}

func runProfileBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openCLIServices(ctx, config.Load())
	if err != nil {
		return err
	}
	defer svc.Close()

	method := facematch.CaptureMethod(mustGetString(cmd, "method"))
	p, err := svc.profiles.BuildProfile(ctx, args[0], mustGetStringSlice(cmd, "photo"), method)
	if err != nil {
		return fmt.Errorf("failed to build profile: %w", err)
	}
	return outputProfile(p, mustGetBool(cmd, "json"))
}

type profileOp func(ctx context.Context, svc *services, urls []string) (*facematch.FaceProfile, error)

func runProfileUpdate(cmd *cobra.Command, ownerID string, op profileOp) error {
	ctx := context.Background()
	svc, err := openCLIServices(ctx, config.Load())
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := op(ctx, svc, mustGetStringSlice(cmd, "photo"))
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", ownerID, err)
	}
	return outputProfile(p, mustGetBool(cmd, "json"))
}

func runProfileOptimize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	svc, err := openCLIServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	minQuality := cfg.Matching.MinQuality
	if cmd.Flags().Changed("min-quality") {
		minQuality = mustGetFloat64(cmd, "min-quality")
	}

	before, err := svc.profiles.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	p, err := svc.profiles.Optimize(ctx, args[0], minQuality)
	if err != nil {
		return fmt.Errorf("failed to optimize profile: %w", err)
	}

	jsonOutput := mustGetBool(cmd, "json")
	if !jsonOutput && before != nil {
		fmt.Printf("Kept %d of %d photos (min quality %.2f)\n\n", len(p.Photos), len(before.Photos), minQuality)
	}
	return outputProfile(p, jsonOutput)
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openCLIServices(ctx, config.Load())
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.profiles.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	fmt.Printf("Deleted profile %s\n", args[0])
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openCLIServices(ctx, config.Load())
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := svc.profiles.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return fmt.Errorf("profile %s: %w", args[0], facematch.ErrNoProfile)
	}
	return outputProfile(p, mustGetBool(cmd, "json"))
}

func outputProfile(p *facematch.FaceProfile, jsonOutput bool) error {
	if p == nil {
		return errors.New("no profile")
	}
	if jsonOutput {
		return outputJSON(p)
	}
	printProfile(p)
	return nil
}

// printProfile prints the profile as a human-readable table.
func printProfile(p *facematch.FaceProfile) {
	fmt.Printf("Owner:   %s\n", p.OwnerID)
	fmt.Printf("Method:  %s\n", p.Method)
	fmt.Printf("Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n\n", p.UpdatedAt.Format("2006-01-02 15:04:05.000000"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tQUALITY")
	fmt.Fprintln(w, "-----\t-------")
	for _, photo := range p.Photos {
		fmt.Fprintf(w, "%s\t%.2f\n", photo.URL, photo.QualityScore)
	}
	w.Flush()
}
