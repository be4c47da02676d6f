package source

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureFetcher reads azblob://container/blob documents.
type AzureFetcher struct {
	client *azblob.Client
}

func NewAzureFetcher(connectionString string) (*AzureFetcher, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &AzureFetcher{client: client}, nil
}

func (a *AzureFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	container, key, err := bucketKey(uri)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("download blob %s: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()
	return readLimited(resp.Body)
}
