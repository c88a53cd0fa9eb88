//go:build integration

package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-drive-relay/cmd"
	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"
	"telegram-drive-relay/infrastructure/config"
	"telegram-drive-relay/infrastructure/staging"

	"github.com/cucumber/godog"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"go.uber.org/zap"
)

const rootFolderID = "root-folder"

type relayContext struct {
	cfg       *config.Config
	transport *chatTransport
	storage   *memoryStorage
	fs        billy.Filesystem
	area      *staging.Area
	messages  []messaging.Inbound
	err       error
}

// SharedRelayContext is reset after each scenario
var SharedRelayContext = &relayContext{}

func InitializeRelayScenario(ctx *godog.ScenarioContext) {
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		*SharedRelayContext = relayContext{}
		return c, nil
	})

	r := SharedRelayContext
	ctx.Step(`^a relay storing files with placement "([^"]*)"$`, r.aRelayStoringFilesWithPlacement)
	ctx.Step(`^the relay accepts files up to (\d+) bytes$`, r.theRelayAcceptsFilesUpTo)
	ctx.Step(`^the chat sends a document "([^"]*)" of (\d+) bytes$`, r.theChatSendsADocument)
	ctx.Step(`^the chat sends a photo of (\d+) bytes as message (\d+)$`, r.theChatSendsAPhoto)
	ctx.Step(`^the chat sends the command "([^"]*)"$`, r.theChatSendsTheCommand)
	ctx.Step(`^the destination already holds (\d+) files of (\d+) bytes$`, r.theDestinationAlreadyHolds)
	ctx.Step(`^the destination already holds (\d+) files of (\d+) bytes in their own folders$`, r.theDestinationAlreadyHoldsInFolders)
	ctx.Step(`^the destination rejects uploads because it is full$`, r.theDestinationRejectsUploadsBecauseItIsFull)
	ctx.Step(`^the relay processes the messages$`, r.theRelayProcessesTheMessages)
	ctx.Step(`^the destination should contain "([^"]*)" with (\d+) bytes$`, r.theDestinationShouldContain)
	ctx.Step(`^the destination should contain a folder "([^"]*)" holding "([^"]*)"$`, r.theDestinationShouldContainAFolderHolding)
	ctx.Step(`^the destination should be empty$`, r.theDestinationShouldBeEmpty)
	ctx.Step(`^the chat should show "([^"]*)"$`, r.theChatShouldShow)
	ctx.Step(`^no file should have been downloaded$`, r.noFileShouldHaveBeenDownloaded)
	ctx.Step(`^the staging area should be empty$`, r.theStagingAreaShouldBeEmpty)
}

func (r *relayContext) aRelayStoringFilesWithPlacement(placement string) error {
	cfg := config.Defaults()
	cfg.Destination.Placement = placement
	cfg.Destination.FolderLabel = "TelegramUploads"
	cfg.Transfer.ProgressInterval = time.Hour

	r.cfg = &cfg
	r.transport = newChatTransport()
	r.storage = &memoryStorage{}
	r.fs = memfs.New()
	r.area = staging.New(r.fs, zap.NewNop())
	r.messages = nil
	return nil
}

func (r *relayContext) theRelayAcceptsFilesUpTo(limit int64) error {
	r.cfg.Transfer.MaxFileSize = limit
	return nil
}

func (r *relayContext) nextMessageID() int {
	return len(r.messages) + 1
}

func (r *relayContext) theChatSendsADocument(name string, size int) error {
	id := r.nextMessageID()
	fileID := fmt.Sprintf("file-%d", id)
	r.transport.addFile(fileID, size)
	r.messages = append(r.messages, messaging.Inbound{
		ChatID:     1,
		MessageID:  id,
		SenderName: "Ana",
		File: &transfer.FileDescriptor{
			ID:   fileID,
			Size: uint64(size),
			Name: name,
			Kind: transfer.MediaDocument,
		},
	})
	return nil
}

func (r *relayContext) theChatSendsAPhoto(size, messageID int) error {
	fileID := fmt.Sprintf("photo-%d", messageID)
	r.transport.addFile(fileID, size)
	r.messages = append(r.messages, messaging.Inbound{
		ChatID:    1,
		MessageID: messageID,
		File: &transfer.FileDescriptor{
			ID:   fileID,
			Size: uint64(size),
			MIME: "image/jpeg",
			Kind: transfer.MediaPhoto,
		},
	})
	return nil
}

func (r *relayContext) theChatSendsTheCommand(command string) error {
	r.messages = append(r.messages, messaging.Inbound{
		ChatID:     1,
		MessageID:  r.nextMessageID(),
		SenderName: "Ana",
		Command:    command,
	})
	return nil
}

func (r *relayContext) theDestinationAlreadyHolds(count, size int) error {
	for i := 0; i < count; i++ {
		r.storage.objects = append(r.storage.objects, memoryObject{
			id:     fmt.Sprintf("existing-%d", i),
			parent: rootFolderID,
			name:   fmt.Sprintf("existing-%d.bin", i),
			data:   make([]byte, size),
		})
	}
	return nil
}

func (r *relayContext) theDestinationAlreadyHoldsInFolders(count, size int) error {
	for i := 0; i < count; i++ {
		folderID := fmt.Sprintf("existing-folder-%d", i)
		r.storage.containers = append(r.storage.containers, memoryContainer{
			id:     folderID,
			parent: rootFolderID,
			name:   fmt.Sprintf("existing-%d", i),
		})
		r.storage.objects = append(r.storage.objects, memoryObject{
			id:     fmt.Sprintf("existing-%d", i),
			parent: folderID,
			name:   fmt.Sprintf("existing-%d.bin", i),
			data:   make([]byte, size),
		})
	}
	return nil
}

func (r *relayContext) theDestinationRejectsUploadsBecauseItIsFull() error {
	r.storage.createErr = distribution.NewPublishError(distribution.PublishQuota, errors.New("storageQuotaExceeded"))
	return nil
}

func (r *relayContext) theRelayProcessesTheMessages() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.err = cmd.RunServeWithDependencies(ctx, &queueSource{messages: r.messages}, r.transport,
		r.storage, rootFolderID, r.area, r.cfg, zap.NewNop())
	if r.err != nil {
		return fmt.Errorf("relay failed: %w", r.err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("relay did not finish in time")
	}
	return nil
}

func (r *relayContext) theDestinationShouldContain(name string, size int) error {
	obj, ok := r.storage.object(name)
	if !ok {
		return fmt.Errorf("object %q not found in destination", name)
	}
	if len(obj.data) != size {
		return fmt.Errorf("object %q has %d bytes, expected %d", name, len(obj.data), size)
	}
	return nil
}

func (r *relayContext) theDestinationShouldContainAFolderHolding(folder, name string) error {
	obj, ok := r.storage.object(name)
	if !ok {
		return fmt.Errorf("object %q not found in destination", name)
	}
	for _, c := range r.storage.containers {
		if c.id == obj.parent {
			if c.name != folder {
				return fmt.Errorf("object %q is in folder %q, expected %q", name, c.name, folder)
			}
			if c.parent != rootFolderID {
				return fmt.Errorf("folder %q is not below the root folder", folder)
			}
			return nil
		}
	}
	return fmt.Errorf("object %q is not inside a folder", name)
}

func (r *relayContext) theDestinationShouldBeEmpty() error {
	if n := len(r.storage.objects); n != 0 {
		return fmt.Errorf("expected no objects in destination, found %d", n)
	}
	return nil
}

func (r *relayContext) theChatShouldShow(text string) error {
	if !r.transport.showed(text) {
		return fmt.Errorf("no chat message contains %q; messages: %q", text, r.transport.texts)
	}
	return nil
}

func (r *relayContext) noFileShouldHaveBeenDownloaded() error {
	if r.transport.getCalls != 0 || r.transport.downloads != 0 {
		return fmt.Errorf("expected no download, got %d lookups and %d downloads", r.transport.getCalls, r.transport.downloads)
	}
	return nil
}

func (r *relayContext) theStagingAreaShouldBeEmpty() error {
	entries, err := r.fs.ReadDir(".")
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("expected empty staging area, found %d files", len(entries))
	}
	return nil
}
