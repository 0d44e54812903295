package azure

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/errs"
)

// Launch schedules the copy tool as a container group on the configured
// subnet. Fire-and-forget: the LRO poller is deliberately discarded — the
// group's execution status is watched by external monitoring, not by us.
func (b *Backend) Launch(ctx context.Context, spec backend.SandboxSpec) error {
	command := make([]*string, 0, len(spec.Command))
	for _, tok := range spec.Command {
		command = append(command, to.Ptr(tok))
	}
	tags := make(map[string]*string, len(spec.Tags))
	for k, v := range spec.Tags {
		tags[k] = to.Ptr(v)
	}

	group := armcontainerinstance.ContainerGroup{
		Location: to.Ptr(spec.Region),
		Tags:     tags,
		Properties: &armcontainerinstance.ContainerGroupPropertiesProperties{
			OSType:        to.Ptr(armcontainerinstance.OperatingSystemTypesLinux),
			RestartPolicy: to.Ptr(armcontainerinstance.ContainerGroupRestartPolicyNever),
			SubnetIDs: []*armcontainerinstance.ContainerGroupSubnetID{
				{ID: to.Ptr(spec.SubnetID)},
			},
			Containers: []*armcontainerinstance.Container{
				{
					Name: to.Ptr(spec.Name),
					Properties: &armcontainerinstance.ContainerProperties{
						Image:   to.Ptr(spec.Image),
						Command: command,
						Resources: &armcontainerinstance.ResourceRequirements{
							Requests: &armcontainerinstance.ResourceRequests{
								CPU:        to.Ptr(spec.CPU),
								MemoryInGB: to.Ptr(spec.MemoryGB),
							},
						},
					},
				},
			},
		},
	}

	if _, err := b.groups.BeginCreateOrUpdate(ctx, b.cfg.Sandbox.ResourceGroup, spec.Name, group, nil); err != nil {
		return errs.E(errs.DispatchFailure, "sandbox.create", err)
	}

	log.Info().
		Str("action", "sandbox_create").
		Str("group", spec.Name).
		Str("region", spec.Region).
		Float64("cpu", spec.CPU).
		Float64("memory_gb", spec.MemoryGB).
		Msg("container group scheduled")
	return nil
}
