package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/snapshot"
	"github.com/marksync/marksync/internal/tree"
	"github.com/marksync/marksync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "snapshot",
	Short:   "Bulk-import a snapshot into a fresh cache and print the result",
	Long: `Load a snapshot file and bulk-import it into a fresh cache.

Imported nodes get new ids in traversal order. By default the snapshot replaces
the root folder's children; use --base to start from another snapshot and
--into to replace one of its folders instead.

The resulting tree is printed and, with --out, written back out. The output
format follows the file extension (.json, .yaml, .yml, .html, .htm).

Example usage:
  marksync import bookmarks.html --out bookmarks.json
  marksync import work.yaml --base all.json --into 12 --out merged.html`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		into, _ := cmd.Flags().GetUint64("into")
		base, _ := cmd.Flags().GetString("base")
		out, _ := cmd.Flags().GetString("out")
		ui.Init(os.Stdout)

		ctx := context.Background()
		c := cache.New()

		if base != "" {
			if _, err := importInto(ctx, c, base, tree.RootID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		imported, err := importInto(ctx, c, args[0], tree.ID(into))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		t, err := c.GetBookmarksTree(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.RenderTree(t.Root))

		folders, bookmarks := ui.CountNodes(imported)
		fmt.Printf("\n%s Imported %d folders and %d bookmarks into folder %s\n",
			ui.RenderPass("✓"), folders, bookmarks, tree.ID(into))

		if out != "" {
			if err := snapshot.Save(out, t.Root); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("   Written: %s\n", out)
		}
	},
}

var treeCmd = &cobra.Command{
	Use:     "tree <file>",
	GroupID: "snapshot",
	Short:   "Render a snapshot file as a tree",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		plain, _ := cmd.Flags().GetBool("plain")
		ui.Init(os.Stdout)
		if plain {
			ui.SetPlain()
		}

		folder, err := snapshot.Load(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := tree.FromFolder(folder).Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
		}

		fmt.Println(ui.RenderTree(folder))
		folders, bookmarks := ui.CountNodes(folder)
		fmt.Printf("\n%d folders, %d bookmarks\n", folders, bookmarks)
	},
}

func init() {
	importCmd.Flags().Uint64("into", 0, "Folder whose children the snapshot replaces")
	importCmd.Flags().String("base", "", "Snapshot imported into the root folder first")
	importCmd.Flags().StringP("out", "o", "", "Write the resulting tree to this file")

	treeCmd.Flags().Bool("plain", false, "Disable colors")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(treeCmd)
}

func importInto(ctx context.Context, c *cache.Cache, path string, into tree.ID) (*tree.Folder, error) {
	folder, err := snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	imported, err := c.BulkImportFolder(ctx, into, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return imported, nil
}
