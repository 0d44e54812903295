package azure

import (
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/share"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
)

// Backend implements backend.Backend on Azure Files + Container Instances.
type Backend struct {
	cfg    config.Config
	source endpointClients
	target endpointClients
	groups *armcontainerinstance.ContainerGroupsClient
}

// endpointClients bundles the data-plane clients for one share endpoint. The
// shared key credential is kept because SAS minting requires it.
type endpointClients struct {
	ep    config.Endpoint
	url   string // e.g. https://<account>.file.core.windows.net/
	cred  *service.SharedKeyCredential
	svc   *service.Client
	share *share.Client
}

func (e endpointClients) shareURL() string {
	return e.url + e.ep.Share
}

func newEndpointClients(ep config.Endpoint) (endpointClients, error) {
	url := os.Getenv("AZURE_FILE_ENDPOINT")
	if url == "" {
		url = fmt.Sprintf("https://%s.file.core.windows.net/", ep.Account)
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}

	cred, err := service.NewSharedKeyCredential(ep.Account, ep.AccountKey)
	if err != nil {
		return endpointClients{}, fmt.Errorf("shared key credential for %s: %w", ep.Account, err)
	}
	svc, err := service.NewClientWithSharedKeyCredential(url, cred, nil)
	if err != nil {
		return endpointClients{}, fmt.Errorf("service client for %s: %w", ep.Account, err)
	}
	return endpointClients{
		ep:    ep,
		url:   url,
		cred:  cred,
		svc:   svc,
		share: svc.NewShareClient(ep.Share),
	}, nil
}

// armCredential builds the control-plane credential.
// Priority: 1) Service Principal  2) DefaultAzureCredential.
func armCredential(c config.Config) (azcore.TokenCredential, error) {
	if c.ClientID != "" && c.ClientSecret != "" && c.TenantID != "" {
		return azidentity.NewClientSecretCredential(c.TenantID, c.ClientID, c.ClientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

func (b *Backend) Name() string { return "azure" }

func (b *Backend) clients(side config.Side) endpointClients {
	if side == config.Target {
		return b.target
	}
	return b.source
}

func init() {
	backend.Register("azure", func(cfg any) (backend.Backend, error) {
		c, ok := cfg.(config.Config)
		if !ok {
			return nil, fmt.Errorf("azure: invalid config type")
		}
		source, err := newEndpointClients(c.Source)
		if err != nil {
			return nil, err
		}
		target, err := newEndpointClients(c.Target)
		if err != nil {
			return nil, err
		}
		cred, err := armCredential(c)
		if err != nil {
			return nil, err
		}
		groups, err := armcontainerinstance.NewContainerGroupsClient(c.SubscriptionID, cred, nil)
		if err != nil {
			return nil, err
		}
		return &Backend{
			cfg:    c,
			source: source,
			target: target,
			groups: groups,
		}, nil
	})
}
