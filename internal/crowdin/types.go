package crowdin

// Wire types for the Crowdin API v2. Single objects arrive wrapped in a
// "data" envelope; lists are arrays of envelopes.

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type listEnvelope[T any] struct {
	Data []dataEnvelope[T] `json:"data"`
}

// Storage is an uploaded raw file awaiting attachment to a project file.
type Storage struct {
	ID       int64  `json:"id"`
	FileName string `json:"fileName"`
}

// File is a translatable file registered in the project.
type File struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"projectId"`
	DirectoryID int64  `json:"directoryId"`
	Name        string `json:"name"`
	Path        string `json:"path"`
}

// Directory is a folder in the project file tree.
type Directory struct {
	ID          int64  `json:"id"`
	DirectoryID int64  `json:"directoryId"`
	Name        string `json:"name"`
	Path        string `json:"path"`
}

// Project carries the metadata used for connection tests.
type Project struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	SourceLanguageID string   `json:"sourceLanguageId"`
	TargetLanguages  []string `json:"targetLanguageIds"`
}

// Build is a translations export build.
type Build struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// BuildFinished is the terminal success status of a build.
const BuildFinished = "finished"

type addFileRequest struct {
	StorageID   int64  `json:"storageId"`
	Name        string `json:"name"`
	DirectoryID int64  `json:"directoryId,omitempty"`
}

type updateFileRequest struct {
	StorageID int64 `json:"storageId"`
}

type addDirectoryRequest struct {
	Name        string `json:"name"`
	DirectoryID int64  `json:"directoryId,omitempty"`
}

type uploadTranslationRequest struct {
	StorageID           int64 `json:"storageId"`
	FileID              int64 `json:"fileId"`
	ImportEqSuggestions bool  `json:"importEqSuggestions"`
	AutoApproveImported bool  `json:"autoApproveImported"`
}

type buildRequest struct {
	SkipUntranslatedStrings bool `json:"skipUntranslatedStrings"`
	ExportApprovedOnly      bool `json:"exportApprovedOnly"`
}

type downloadLink struct {
	URL string `json:"url"`
}
