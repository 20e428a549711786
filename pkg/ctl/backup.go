package ctl

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkgforge/registry/pkg/blobstore"
	"github.com/pkgforge/registry/pkg/blobstore/backup"
	"github.com/pkgforge/registry/pkg/bootstrap"
	"github.com/pkgforge/registry/pkg/config"
	"github.com/pkgforge/registry/pkg/observability"
)

func newBackupCommand() *Command {
	cmd := &Command{
		Name:        "backup",
		Description: "Mirror on-disk archives missing from the S3 backup bucket",
		Flags:       flag.NewFlagSet("backup", flag.ExitOnError),
	}
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return runBackup()
	}
	return cmd
}

// runBackup walks every release the catalog knows about and uploads its
// archive to the configured S3 mirror, skipping ones already present there.
// It drives off the catalog rather than blobstore.Walk, unlike gc, because
// the thing worth mirroring is what's published, not merely what's on disk.
func runBackup() error {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Blobstore.BackupBucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is not configured")
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

	mirror, err := backup.NewMirror(ctx, backup.Config{
		Endpoint:     cfg.Blobstore.BackupEndpoint,
		Region:       cfg.Blobstore.BackupRegion,
		Bucket:       cfg.Blobstore.BackupBucket,
		AccessKey:    cfg.Blobstore.BackupAccessKey,
		SecretKey:    cfg.Blobstore.BackupSecretKey,
		UsePathStyle: cfg.Blobstore.BackupUsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("connect to S3 mirror: %w", err)
	}

	var mirrored, skipped int
	const pageSize = 200
	offset := 0
	for {
		pkgs, total, err := cat.ListPackages(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("list packages: %w", err)
		}
		for _, pkg := range pkgs {
			releases, err := cat.ListReleases(ctx, pkg.Owner, pkg.Repo)
			if err != nil {
				return fmt.Errorf("list releases for %s: %w", pkg.FullName, err)
			}
			for _, rel := range releases {
				n, s, err := mirrorOne(ctx, blobs, mirror, pkg.Owner, pkg.Repo, rel.Tag)
				if err != nil {
					return err
				}
				mirrored += n
				skipped += s
			}
		}
		offset += len(pkgs)
		if len(pkgs) == 0 || int64(offset) >= total {
			break
		}
	}

	fmt.Printf("mirrored %d archives, %d already present\n", mirrored, skipped)
	return nil
}

func mirrorOne(ctx context.Context, blobs *blobstore.FileSystemStore, mirror *backup.Mirror, owner, repo, tag string) (mirrored, skipped int, err error) {
	exists, err := mirror.Exists(ctx, owner, repo, tag)
	if err != nil {
		return 0, 0, fmt.Errorf("check mirror for %s/%s@%s: %w", owner, repo, tag, err)
	}
	if exists {
		return 0, 1, nil
	}

	r, _, err := blobs.Retrieve(ctx, owner, repo, tag)
	if err == blobstore.ErrNotFound {
		fmt.Printf("skipping %s/%s@%s: no local archive\n", owner, repo, tag)
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("retrieve %s/%s@%s: %w", owner, repo, tag, err)
	}
	defer r.Close()

	if err := mirror.Upload(ctx, owner, repo, tag, r); err != nil {
		return 0, 0, fmt.Errorf("upload %s/%s@%s: %w", owner, repo, tag, err)
	}
	fmt.Printf("mirrored: %s/%s@%s\n", owner, repo, tag)
	return 1, 0, nil
}
