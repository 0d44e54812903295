package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/directory"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/share"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/errs"
)

// ListSnapshots enumerates snapshot entries of the side's share. Ordering is
// whatever the service returns; the snapshot manager sorts explicitly.
func (b *Backend) ListSnapshots(ctx context.Context, side config.Side) ([]backend.Snapshot, error) {
	cl := b.clients(side)

	var snaps []backend.Snapshot
	pager := cl.svc.NewListSharesPager(&service.ListSharesOptions{
		Prefix: to.Ptr(cl.ep.Share),
		Include: service.ListSharesInclude{
			Metadata:  true,
			Snapshots: true,
		},
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errs.Classify("snapshot.list", err)
		}
		for _, it := range page.Shares {
			// The listing includes the base share and snapshots of shares
			// matching the prefix; keep only snapshots of the exact share.
			if it.Name == nil || *it.Name != cl.ep.Share || it.Snapshot == nil {
				continue
			}
			created, err := time.Parse(time.RFC3339Nano, *it.Snapshot)
			if err != nil {
				return nil, fmt.Errorf("parse snapshot time %q: %w", *it.Snapshot, err)
			}
			snaps = append(snaps, backend.Snapshot{
				Share:     cl.ep.Share,
				ID:        *it.Snapshot,
				CreatedAt: created,
				Metadata:  flattenMetadata(it.Metadata),
			})
		}
	}

	log.Debug().
		Str("action", "snapshot_list").
		Str("side", string(side)).
		Str("share", cl.ep.Share).
		Int("count", len(snaps)).
		Msg("listed share snapshots")
	return snaps, nil
}

// CreateSnapshot takes a new point-in-time view of the side's share.
func (b *Backend) CreateSnapshot(ctx context.Context, side config.Side) (backend.Snapshot, error) {
	cl := b.clients(side)

	resp, err := cl.share.CreateSnapshot(ctx, nil)
	if err != nil {
		return backend.Snapshot{}, errs.Classify("snapshot.create", err)
	}
	if resp.Snapshot == nil {
		return backend.Snapshot{}, errs.Errorf(errs.Unknown, "snapshot.create", "service returned no snapshot id for share %s", cl.ep.Share)
	}
	created, err := time.Parse(time.RFC3339Nano, *resp.Snapshot)
	if err != nil {
		return backend.Snapshot{}, fmt.Errorf("parse snapshot time %q: %w", *resp.Snapshot, err)
	}

	snap := backend.Snapshot{
		Share:     cl.ep.Share,
		ID:        *resp.Snapshot,
		CreatedAt: created,
	}
	log.Info().
		Str("action", "snapshot_create").
		Str("side", string(side)).
		Str("share", cl.ep.Share).
		Str("snapshot", snap.ID).
		Msg("snapshot created")
	return snap, nil
}

// DeleteSnapshot force-deletes a single snapshot. Snapshots cannot otherwise
// be removed while referenced, so the delete targets the snapshot directly.
func (b *Backend) DeleteSnapshot(ctx context.Context, side config.Side, snap backend.Snapshot) error {
	cl := b.clients(side)

	_, err := cl.share.Delete(ctx, &share.DeleteOptions{
		ShareSnapshot: to.Ptr(snap.ID),
	})
	if err != nil {
		return errs.Classify("snapshot.delete", err)
	}
	log.Info().
		Str("action", "snapshot_delete").
		Str("side", string(side)).
		Str("share", cl.ep.Share).
		Str("snapshot", snap.ID).
		Msg("snapshot deleted")
	return nil
}

// TargetHasFiles probes the target share root for any entry. One page of one
// item is enough to answer the question.
func (b *Backend) TargetHasFiles(ctx context.Context) (bool, error) {
	root := b.target.share.NewRootDirectoryClient()
	pager := root.NewListFilesAndDirectoriesPager(&directory.ListFilesAndDirectoriesOptions{
		MaxResults: to.Ptr(int32(1)),
	})
	if pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, errs.Classify("target.probe", err)
		}
		if page.Segment != nil && (len(page.Segment.Files) > 0 || len(page.Segment.Directories) > 0) {
			return true, nil
		}
	}
	return false, nil
}

func flattenMetadata(md map[string]*string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		if v != nil {
			out[k] = *v
		} else {
			out[k] = ""
		}
	}
	return out
}
