package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/constants"
	"github.com/kozaktomas/traceon/internal/database/postgres"
	"github.com/kozaktomas/traceon/internal/extract"
	"github.com/kozaktomas/traceon/internal/gallery"
	"github.com/kozaktomas/traceon/internal/matcher"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <folder>",
	Short: "Build gallery entries from a folder of portrait photos",
	Long: `Extract one descriptor per photo in a folder and print gallery entries.

Each photo becomes an identity labelled after its filename
(jane_doe.jpg -> "Jane Doe"). Photos without a face are skipped. Photos
with more than one face use the first face the embedding service reports.

Examples:
  # Print a gallery file
  traceon encode ./portraits > gallery.yaml

  # Write to a file and store the entries in PostgreSQL
  traceon encode ./portraits --output gallery.yaml --push

  # Fill status and last seen location for every entry
  traceon encode ./portraits --status "Missing" --last-seen-location "Central City Park"`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("output", "", "Write the gallery file here instead of stdout")
	encodeCmd.Flags().Bool("push", false, "Upsert the entries into the PostgreSQL gallery (DATABASE_URL)")
	encodeCmd.Flags().String("status", "", "Status to set on every new entry")
	encodeCmd.Flags().String("last-seen-location", "", "Last seen location to set on every new entry")
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// listImages returns image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// encodeFile returns the descriptor of the first face in path, or nil when there is none.
func encodeFile(ctx context.Context, extractor extract.Extractor, path string) (gallery.Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's folder
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	prepared, err := extract.PrepareImage(data, constants.MaxImageSize)
	if err != nil {
		return nil, err
	}
	descs, err := extractor.Extract(ctx, prepared)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, nil
	}
	return descs[0], nil
}

// entryMetadata builds the metadata shared by every encoded entry. Empty values are left out.
func entryMetadata(status, lastSeenLocation string) gallery.Metadata {
	m := gallery.Metadata{}
	if status != "" {
		m[gallery.MetaStatus] = status
	}
	if lastSeenLocation != "" {
		m[gallery.MetaLastSeenLocation] = lastSeenLocation
	}
	return m
}

// warnCloseIdentities reports identity pairs closer than tolerance. With
// first-match lookup the later one of such a pair can be shadowed.
func warnCloseIdentities(identities []gallery.Identity, tolerance float64) {
	for i := range identities {
		for j := i + 1; j < len(identities); j++ {
			d, err := matcher.EuclideanDistance(identities[i].Descriptor, identities[j].Descriptor)
			if err != nil || d > tolerance {
				continue
			}
			fmt.Fprintf(os.Stderr, "Warning: %q and %q are %.4f apart (tolerance %.2f), %q may never match\n",
				identities[i].Label, identities[j].Label, d, tolerance, identities[j].Label)
		}
	}
}

func runEncode(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")
	push := mustGetBool(cmd, "push")
	metadata := entryMetadata(mustGetString(cmd, "status"), mustGetString(cmd, "last-seen-location"))

	ctx := context.Background()
	cfg := config.Load()

	files, err := listImages(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	client := extract.NewClient(cfg.Extractor.URL)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("embedding service not available: %w", err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Encoding faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		identities []gallery.Identity
		skipped    []string
	)
	for _, path := range files {
		desc, err := encodeFile(ctx, client, path)
		_ = bar.Add(1)
		switch {
		case err != nil:
			skipped = append(skipped, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		case desc == nil:
			skipped = append(skipped, filepath.Base(path)+": no face found")
			continue
		}

		identities = append(identities, gallery.Identity{
			Label:      gallery.LabelFromFilename(path),
			Descriptor: desc,
			Metadata:   maps.Clone(metadata),
		})
	}
	fmt.Fprintln(os.Stderr)

	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "Skipped %s\n", s)
	}

	// Same validation as serve, so duplicates fail here rather than at startup.
	if _, err := gallery.New(identities, 0); err != nil {
		return err
	}
	warnCloseIdentities(identities, cfg.Gallery.Tolerance)

	data, err := gallery.Marshal(identities)
	if err != nil {
		return err
	}
	if output == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	} else {
		if err := os.WriteFile(output, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d identities to %s\n", len(identities), output)
	}

	if push {
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := postgres.NewIdentityRepository(pool)
		for _, id := range identities {
			if err := repo.Upsert(ctx, id); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stderr, "Pushed %d identities to PostgreSQL\n", len(identities))
	}
	return nil
}
