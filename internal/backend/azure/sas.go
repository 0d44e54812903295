package azure

import (
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/sas"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/errs"
)

// ShareSAS mints a share-scoped SAS for the side, signed with the endpoint's
// account key. The permission set is exactly what the caller asked for.
func (b *Backend) ShareSAS(side config.Side, perms backend.Permissions, expiry time.Time) (backend.ShareAccess, error) {
	cl := b.clients(side)

	sharePerms := sas.SharePermissions{
		Read:  perms.Read,
		Write: perms.Write,
		List:  perms.List,
	}
	values := sas.SignatureValues{
		Protocol:    sas.ProtocolHTTPS,
		ExpiryTime:  expiry.UTC(),
		ShareName:   cl.ep.Share,
		Permissions: sharePerms.String(),
	}
	qp, err := values.SignWithSharedKey(cl.cred)
	if err != nil {
		return backend.ShareAccess{}, errs.E(errs.SASGenerationFailure, "sas.sign", err)
	}
	return backend.ShareAccess{
		ShareURL:  cl.shareURL(),
		SAS:       qp.Encode(),
		ExpiresAt: expiry.UTC(),
	}, nil
}
