package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/traceon/internal/config"
	"github.com/kozaktomas/traceon/internal/database/mariadb"
	"github.com/kozaktomas/traceon/internal/database/postgres"
	"github.com/kozaktomas/traceon/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Gallery maintenance commands",
}

var galleryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configured gallery and report problems",
	Long: `Load the gallery exactly as serve does and report the first problem found.

Examples:
  # Validate the gallery selected by GALLERY_SOURCE
  traceon gallery validate

  # Validate a file regardless of GALLERY_SOURCE
  traceon gallery validate --file gallery.yaml`,
	RunE: runGalleryValidate,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gallery identities in match order",
	RunE:  runGalleryList,
}

var galleryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Copy a gallery file into PostgreSQL or MariaDB",
	Long: `Validate a gallery file and store it in a database.

PostgreSQL imports replace the whole gallery. MariaDB imports upsert each
entry, keeping the position of labels that already exist.

Examples:
  traceon gallery import gallery.yaml --to postgres
  traceon gallery import gallery.yaml --to mariadb`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryImport,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryValidateCmd, galleryListCmd, galleryImportCmd)

	for _, c := range []*cobra.Command{galleryValidateCmd, galleryListCmd} {
		c.Flags().String("file", "", "Read this gallery file instead of GALLERY_SOURCE")
		c.Flags().Bool("json", false, "Output as JSON")
	}
	galleryImportCmd.Flags().String("to", config.GallerySourcePostgres, "Target database: postgres or mariadb")
}

// galleryFromFlags loads the gallery from --file or from the configured source.
func galleryFromFlags(ctx context.Context, cmd *cobra.Command) (*gallery.Store, error) {
	cfg := config.Load()
	if file := mustGetString(cmd, "file"); file != "" {
		cfg.Gallery.Source = config.GallerySourceFile
		cfg.Gallery.Path = file
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return loadGallery(ctx, cfg)
}

// GalleryValidateResult is the JSON output of gallery validate.
type GalleryValidateResult struct {
	Valid     bool   `json:"valid"`
	Size      int    `json:"size"`
	Dimension int    `json:"dimension"`
	Error     string `json:"error,omitempty"`
}

func runGalleryValidate(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	store, err := galleryFromFlags(context.Background(), cmd)
	if jsonOutput {
		result := GalleryValidateResult{Valid: err == nil, Size: store.Len(), Dimension: store.Dim()}
		if err != nil {
			result.Error = err.Error()
		}
		if encErr := outputJSON(result); encErr != nil {
			return encErr
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Printf("Gallery OK: %d identities, %d-dimensional descriptors\n", store.Len(), store.Dim())
	return nil
}

// GalleryListEntry is one identity in gallery list output.
type GalleryListEntry struct {
	Position int               `json:"position"`
	Label    string            `json:"label"`
	Metadata map[string]string `json:"metadata"`
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	store, err := galleryFromFlags(context.Background(), cmd)
	if err != nil {
		return err
	}

	entries := make([]GalleryListEntry, 0, store.Len())
	for i, id := range store.Entries() {
		entries = append(entries, GalleryListEntry{Position: i, Label: id.Label, Metadata: id.Metadata})
	}
	if jsonOutput {
		return outputJSON(entries)
	}

	for _, e := range entries {
		var parts []string
		for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Metadata[k]))
		}
		fmt.Printf("%3d  %-30s %s\n", e.Position, e.Label, strings.Join(parts, ", "))
	}
	fmt.Printf("\n%d identities\n", len(entries))
	return nil
}

func runGalleryImport(cmd *cobra.Command, args []string) error {
	target := strings.ToLower(mustGetString(cmd, "to"))
	ctx := context.Background()
	cfg := config.Load()

	identities, err := gallery.NewFileSource(args[0]).Identities(ctx)
	if err != nil {
		return err
	}
	if _, err := gallery.New(identities, cfg.Gallery.Dim); err != nil {
		return err
	}

	var total int
	switch target {
	case config.GallerySourcePostgres:
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := postgres.NewIdentityRepository(pool)
		if err := repo.ReplaceAll(ctx, identities); err != nil {
			return err
		}
		if total, err = repo.Count(ctx); err != nil {
			return err
		}
	case config.GallerySourceMariaDB:
		pool, err := mariadb.Open(ctx, &cfg.MariaDB)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := mariadb.NewIdentityRepository(pool)
		for _, id := range identities {
			if err := repo.Upsert(ctx, id); err != nil {
				return err
			}
		}
		if total, err = repo.Count(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown target %q (want postgres or mariadb)", target)
	}

	fmt.Printf("Imported %d identities into %s, gallery now holds %d\n", len(identities), target, total)
	return nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
