//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
)

// queueSource delivers a fixed list of messages and then closes
type queueSource struct {
	messages []messaging.Inbound
}

func (s *queueSource) Updates(ctx context.Context) (<-chan messaging.Inbound, error) {
	ch := make(chan messaging.Inbound, len(s.messages))
	for _, m := range s.messages {
		ch <- m
	}
	close(ch)
	return ch, nil
}

// chatTransport is an in-memory Telegram chat
type chatTransport struct {
	mu        sync.Mutex
	files     map[string][]byte
	texts     []string
	nextID    int
	getCalls  int
	downloads int
}

func newChatTransport() *chatTransport {
	return &chatTransport{files: make(map[string][]byte)}
}

func (t *chatTransport) addFile(id string, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[id] = bytes.Repeat([]byte("x"), size)
}

func (t *chatTransport) GetFileHandle(ctx context.Context, fileID string) (messaging.FileHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getCalls++
	data, ok := t.files[fileID]
	if !ok {
		return messaging.FileHandle{}, fmt.Errorf("file %s not found", fileID)
	}
	return messaging.FileHandle{ID: fileID, Size: uint64(len(data)), Location: fileID}, nil
}

func (t *chatTransport) StreamDownload(ctx context.Context, h messaging.FileHandle, dst io.Writer, onProgress messaging.ProgressFunc) error {
	t.mu.Lock()
	t.downloads++
	data := t.files[h.Location]
	t.mu.Unlock()

	n, err := dst.Write(data)
	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(uint64(n), uint64(len(data)))
	}
	return nil
}

func (t *chatTransport) SendStatus(ctx context.Context, chatID int64, text string) (messaging.StatusHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.texts = append(t.texts, text)
	return messaging.StatusHandle{ChatID: chatID, MessageID: t.nextID}, nil
}

func (t *chatTransport) EditStatus(ctx context.Context, h messaging.StatusHandle, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.texts = append(t.texts, text)
	return nil
}

func (t *chatTransport) showed(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.texts {
		if strings.Contains(s, text) {
			return true
		}
	}
	return false
}

type memoryContainer struct {
	id, parent, name string
}

type memoryObject struct {
	id, parent, name, mimeType string
	data                       []byte
}

// memoryStorage is an in-memory destination
type memoryStorage struct {
	mu         sync.Mutex
	containers []memoryContainer
	objects    []memoryObject
	createErr  error
	nextID     int
}

func (s *memoryStorage) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *memoryStorage) CreateContainer(ctx context.Context, parentID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID("folder")
	s.containers = append(s.containers, memoryContainer{id: id, parent: parentID, name: name})
	return id, nil
}

func (s *memoryStorage) FindContainer(ctx context.Context, parentID, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.containers {
		if c.parent == parentID && c.name == name {
			return c.id, true, nil
		}
	}
	return "", false, nil
}

func (s *memoryStorage) CreateObject(ctx context.Context, parentID string, obj distribution.ObjectSpec) (*distribution.RemoteObject, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	data, err := io.ReadAll(obj.Content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID("file")
	s.objects = append(s.objects, memoryObject{id: id, parent: parentID, name: obj.Name, mimeType: obj.MimeType, data: data})
	return &distribution.RemoteObject{
		ID:          id,
		DisplayName: obj.Name,
		ViewURL:     "https://drive.example/file/" + id,
		SizeBytes:   int64(len(data)),
	}, nil
}

func (s *memoryStorage) ListContainerContents(ctx context.Context, containerID string) ([]distribution.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var files []distribution.FileInfo
	for _, c := range s.containers {
		if c.parent == containerID {
			files = append(files, distribution.FileInfo{
				ID:       c.id,
				Name:     c.name,
				MimeType: distribution.MimeTypeFolder,
			})
		}
	}
	for _, o := range s.objects {
		if o.parent == containerID {
			files = append(files, distribution.FileInfo{
				ID:          o.id,
				Name:        o.name,
				MimeType:    o.mimeType,
				Size:        int64(len(o.data)),
				CreatedTime: time.Now(),
			})
		}
	}
	return files, nil
}

func (s *memoryStorage) GetStorageQuota(ctx context.Context) (*distribution.StorageInfo, error) {
	return nil, distribution.ErrQuotaUnsupported
}

func (s *memoryStorage) Name() string {
	return "Google Drive"
}

func (s *memoryStorage) object(name string) (memoryObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.objects {
		if o.name == name {
			return o, true
		}
	}
	return memoryObject{}, false
}
