package distribution

import (
	"context"
	"fmt"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/transfer"

	"go.uber.org/zap"
)

// Placement selects where in the destination hierarchy an object goes
type Placement string

const (
	// PlacementFlat stores objects directly in the root container
	PlacementFlat Placement = "flat"
	// PlacementPerItemFolder creates one container per object, named after
	// the object without its extension
	PlacementPerItemFolder Placement = "per_item_folder"
)

// PlacementPolicy returns the container an object should be created in
type PlacementPolicy interface {
	Place(ctx context.Context, client distribution.StorageClient, rootID, name string) (string, error)
}

type flatPlacement struct{}

func (flatPlacement) Place(_ context.Context, _ distribution.StorageClient, rootID, _ string) (string, error) {
	return rootID, nil
}

type perItemFolderPlacement struct {
	reuseExisting bool
}

// Place creates the per-item container. Without reuseExisting a new container
// is created on every call, even when one with the same name already exists.
func (p perItemFolderPlacement) Place(ctx context.Context, client distribution.StorageClient, rootID, name string) (string, error) {
	folder := transfer.BaseName(name)

	if p.reuseExisting {
		id, found, err := client.FindContainer(ctx, rootID, folder)
		if err != nil {
			return "", fmt.Errorf("%w %q: %w", distribution.ErrContainerCreate, folder, err)
		}
		if found {
			return id, nil
		}
	}

	id, err := client.CreateContainer(ctx, rootID, folder)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", distribution.ErrContainerCreate, folder, err)
	}
	return id, nil
}

// NewPlacement builds the policy for a configured placement name
func NewPlacement(p Placement, reuseExisting bool) (PlacementPolicy, error) {
	switch p {
	case PlacementFlat, "":
		return flatPlacement{}, nil
	case PlacementPerItemFolder:
		return perItemFolderPlacement{reuseExisting: reuseExisting}, nil
	}
	return nil, fmt.Errorf("%w: %q", distribution.ErrUnknownPlacement, p)
}

// Publisher persists staged bytes into the destination storage
type Publisher struct {
	client    distribution.StorageClient
	rootID    string
	placement PlacementPolicy
	log       *zap.Logger
}

// NewPublisher creates a publisher writing below rootID
func NewPublisher(client distribution.StorageClient, rootID string, placement PlacementPolicy, log *zap.Logger) *Publisher {
	if placement == nil {
		placement = flatPlacement{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		client:    client,
		rootID:    rootID,
		placement: placement,
		log:       log,
	}
}

// Destination returns the backend name shown to users
func (p *Publisher) Destination() string {
	return p.client.Name()
}

// Publish places the object and uploads content. Every failure is returned as
// a *distribution.PublishError.
func (p *Publisher) Publish(ctx context.Context, content distribution.Content, size int64, name, mimeType string) (*distribution.RemoteObject, error) {
	parentID, err := p.placement.Place(ctx, p.client, p.rootID, name)
	if err != nil {
		return nil, &distribution.PublishError{Kind: distribution.PublishKindOf(err), Cause: err}
	}

	obj, err := p.client.CreateObject(ctx, parentID, distribution.ObjectSpec{
		Name:     name,
		MimeType: mimeType,
		Size:     size,
		Content:  content,
	})
	if err != nil {
		return nil, distribution.NewPublishError(distribution.PublishOther, err)
	}

	p.log.Info("published object",
		zap.String("name", obj.DisplayName),
		zap.String("id", obj.ID),
		zap.String("parent", parentID),
		zap.Int64("size", obj.SizeBytes),
	)
	return obj, nil
}
