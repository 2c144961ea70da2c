package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/cachefs/internal/config"
	"github.com/marmos91/cachefs/pkg/metadatastore"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache occupancy and entry counts",
	Long: `Print a read-only summary of the cache root: number of tracked
objects, how many are dirty, and total resident bytes on disk.

Unlike the reference server's "status" command, this has no running
health-check endpoint to poll against: cachefsd serve has no listener
of its own, so stats reads the metadata store and cache root directly
instead.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	meta, err := metadatastore.New(&metadatastore.Config{CacheRoot: cfg.Cache.Root})
	if err != nil {
		return err
	}

	rows, err := meta.AllEntries()
	if err != nil {
		return err
	}

	var dirty int
	var totalBytes int64
	for _, row := range rows {
		if row.Dirty {
			dirty++
		}
		totalBytes += row.Size
	}

	diskBytes, _ := dirSize(cfg.Cache.Root)

	cmd.Printf("cache root:        %s\n", cfg.Cache.Root)
	cmd.Printf("tracked objects:   %d\n", len(rows))
	cmd.Printf("dirty objects:     %d\n", dirty)
	cmd.Printf("tracked bytes:     %d\n", totalBytes)
	cmd.Printf("on-disk bytes:     %d\n", diskBytes)
	cmd.Printf("backend:           %s\n", cfg.Backend.Type)
	return nil
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
