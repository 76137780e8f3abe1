package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBlobStore backs the dual-write containers with Azure Blob
// Storage. Containers are created on first write so a fresh storage
// account needs no manual setup.
type AzureBlobStore struct {
	client *azblob.Client
}

func NewAzureBlobStore(account, key string) (*AzureBlobStore, error) {
	account = strings.TrimSpace(account)
	key = strings.TrimSpace(key)
	if account == "" || key == "" {
		return nil, ErrInvalidInput
	}
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, err
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}
	return &AzureBlobStore{client: client}, nil
}

// NewAzureBlobStoreFromConnectionString supports Azurite and SAS-style
// deployments where a full connection string is handed out instead of
// an account/key pair.
func NewAzureBlobStoreFromConnectionString(connectionString string) (*AzureBlobStore, error) {
	connectionString = strings.TrimSpace(connectionString)
	if connectionString == "" {
		return nil, ErrInvalidInput
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, err
	}
	return &AzureBlobStore{client: client}, nil
}

func (s *AzureBlobStore) Exists(ctx context.Context, container, name string) (bool, error) {
	if s == nil || s.client == nil {
		return false, ErrInvalidInput
	}
	blobClient := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(name)
	_, err := blobClient.GetProperties(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AzureBlobStore) Put(ctx context.Context, container, name string, data []byte) error {
	if s == nil || s.client == nil || strings.TrimSpace(name) == "" {
		return ErrInvalidInput
	}
	_, err := s.client.UploadBuffer(ctx, container, name, data, nil)
	if bloberror.HasCode(err, bloberror.ContainerNotFound) {
		if _, createErr := s.client.CreateContainer(ctx, container, nil); createErr != nil && !bloberror.HasCode(createErr, bloberror.ContainerAlreadyExists) {
			return createErr
		}
		_, err = s.client.UploadBuffer(ctx, container, name, data, nil)
	}
	return err
}

func (s *AzureBlobStore) Get(ctx context.Context, container, name string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, ErrInvalidInput
	}
	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *AzureBlobStore) List(ctx context.Context, container string) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, ErrInvalidInput
	}
	names := make([]string, 0)
	pager := s.client.NewListBlobsFlatPager(container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

func (s *AzureBlobStore) Delete(ctx context.Context, container, name string) error {
	if s == nil || s.client == nil {
		return ErrInvalidInput
	}
	_, err := s.client.DeleteBlob(ctx, container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	return err
}

func (s *AzureBlobStore) Close() error {
	return nil
}
