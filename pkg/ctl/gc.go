package ctl

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkgforge/registry/pkg/blobstore"
	"github.com/pkgforge/registry/pkg/bootstrap"
	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/config"
	"github.com/pkgforge/registry/pkg/observability"
)

func newGCCommand() *Command {
	cmd := &Command{
		Name:        "gc",
		Description: "Delete blobs on disk with no matching release in the catalog",
		Flags:       flag.NewFlagSet("gc", flag.ExitOnError),
	}
	dryRun := cmd.Flags.Bool("dry-run", true, "List orphaned blobs without deleting them")
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return runGC(*dryRun)
	}
	return cmd
}

// runGC enumerates every blob actually on disk (blobstore.FileSystemStore.Walk)
// and every release the catalog knows about, and deletes any blob that has
// no corresponding release row. A release can exist with no blob (between
// CreateRelease and the archive upload completing) but never the reverse in
// a consistent system — a blob with no release is always safe to remove,
// since nothing reachable through the API would ever reference it.
func runGC(dryRun bool) error {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	cat, _, err := bootstrap.OpenCatalog(cfg.Catalog.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	blobs, err := blobstore.NewFileSystemStore(cfg.Blobstore.StoragePath, cfg.Blobstore.MaxPackageSize)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	live, err := liveReleaseKeys(ctx, cat)
	if err != nil {
		return fmt.Errorf("enumerate releases: %w", err)
	}

	var scanned, orphaned int
	var freedBytes int64
	walkErr := blobs.Walk(func(ref blobstore.BlobRef) error {
		scanned++
		key := ref.Owner + "/" + ref.Repo + "@" + ref.Tag
		if live[key] {
			return nil
		}
		orphaned++
		freedBytes += ref.SizeBytes
		if dryRun {
			fmt.Printf("would delete: %s (%d bytes)\n", key, ref.SizeBytes)
			return nil
		}
		fmt.Printf("deleting: %s (%d bytes)\n", key, ref.SizeBytes)
		if err := blobs.Delete(ctx, ref.Owner, ref.Repo, ref.Tag); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk blob store: %w", walkErr)
	}

	verb := "would free"
	if !dryRun {
		verb = "freed"
	}
	fmt.Printf("scanned %d blobs, %d orphaned, %s %d bytes\n", scanned, orphaned, verb, freedBytes)
	return nil
}

// liveReleaseKeys returns the set of "owner/repo@tag" keys for every
// release currently in the catalog, across every package, paginating
// through ListPackages since a large registry won't fit in one page.
func liveReleaseKeys(ctx context.Context, cat catalog.Catalog) (map[string]bool, error) {
	keys := make(map[string]bool)
	const pageSize = 200
	offset := 0
	for {
		pkgs, total, err := cat.ListPackages(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, pkg := range pkgs {
			releases, err := cat.ListReleases(ctx, pkg.Owner, pkg.Repo)
			if err != nil {
				return nil, fmt.Errorf("list releases for %s: %w", pkg.FullName, err)
			}
			for _, rel := range releases {
				keys[pkg.Owner+"/"+pkg.Repo+"@"+rel.Tag] = true
			}
		}
		offset += len(pkgs)
		if len(pkgs) == 0 || int64(offset) >= total {
			break
		}
	}
	return keys, nil
}
