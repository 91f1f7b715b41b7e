package crowdin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// UploadStorage uploads raw bytes and returns the storage id used by the
// file and translation endpoints.
func (c *Client) UploadStorage(ctx context.Context, fileName string, content []byte) (int64, error) {
	target := fmt.Sprintf("%s/api/v2/storages", c.baseURL())
	headers := map[string]string{
		"Content-Type":         "application/octet-stream",
		"Crowdin-API-FileName": fileName,
	}
	var envelope dataEnvelope[Storage]
	if err := c.doRaw(ctx, http.MethodPost, target, content, headers, &envelope); err != nil {
		return 0, err
	}
	return envelope.Data.ID, nil
}

// ListFiles returns all project files.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var envelope listEnvelope[File]
	target := c.projectURL("/files?limit=500")
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &envelope); err != nil {
		return nil, err
	}
	files := make([]File, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		files = append(files, item.Data)
	}
	return files, nil
}

// FindFileByPath returns the file at the absolute remote path, or nil.
func (c *Client) FindFileByPath(ctx context.Context, path string) (*File, error) {
	files, err := c.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Path == path {
			return &files[i], nil
		}
	}
	return nil, nil
}

// AddFile registers an uploaded storage as a new project file.
func (c *Client) AddFile(ctx context.Context, storageID int64, name string, directoryID int64) (*File, error) {
	var envelope dataEnvelope[File]
	body := addFileRequest{StorageID: storageID, Name: name, DirectoryID: directoryID}
	if err := c.doJSON(ctx, http.MethodPost, c.projectURL("/files"), body, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// UpdateFile replaces an existing file's content with an uploaded storage.
func (c *Client) UpdateFile(ctx context.Context, fileID, storageID int64) error {
	target := c.projectURL(fmt.Sprintf("/files/%d", fileID))
	return c.doJSON(ctx, http.MethodPut, target, updateFileRequest{StorageID: storageID}, nil)
}

// UploadTranslation attaches an uploaded storage as translations of the
// file for the given remote language.
func (c *Client) UploadTranslation(ctx context.Context, languageID string, fileID, storageID int64) error {
	target := c.projectURL("/translations/" + url.PathEscape(languageID))
	body := uploadTranslationRequest{StorageID: storageID, FileID: fileID}
	return c.doJSON(ctx, http.MethodPost, target, body, nil)
}

// ListDirectories returns all project directories.
func (c *Client) ListDirectories(ctx context.Context) ([]Directory, error) {
	var envelope listEnvelope[Directory]
	target := c.projectURL("/directories?limit=500")
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &envelope); err != nil {
		return nil, err
	}
	dirs := make([]Directory, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		dirs = append(dirs, item.Data)
	}
	return dirs, nil
}

// CreateDirectory creates a directory under the given parent (0 for root).
func (c *Client) CreateDirectory(ctx context.Context, name string, parentID int64) (*Directory, error) {
	var envelope dataEnvelope[Directory]
	body := addDirectoryRequest{Name: name, DirectoryID: parentID}
	if err := c.doJSON(ctx, http.MethodPost, c.projectURL("/directories"), body, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// EnsureDirectory resolves the directory id for the given path segments,
// creating missing intermediate directories. Returns 0 for an empty path.
func (c *Client) EnsureDirectory(ctx context.Context, segments []string) (int64, error) {
	if len(segments) == 0 {
		return 0, nil
	}
	existing, err := c.ListDirectories(ctx)
	if err != nil {
		return 0, err
	}
	byParentName := make(map[int64]map[string]int64)
	for _, dir := range existing {
		if byParentName[dir.DirectoryID] == nil {
			byParentName[dir.DirectoryID] = make(map[string]int64)
		}
		byParentName[dir.DirectoryID][dir.Name] = dir.ID
	}

	var parent int64
	for _, name := range segments {
		if id, ok := byParentName[parent][name]; ok {
			parent = id
			continue
		}
		created, err := c.CreateDirectory(ctx, name, parent)
		if err != nil {
			return 0, fmt.Errorf("create directory %q: %w", name, err)
		}
		if byParentName[parent] == nil {
			byParentName[parent] = make(map[string]int64)
		}
		byParentName[parent][name] = created.ID
		parent = created.ID
	}
	return parent, nil
}
