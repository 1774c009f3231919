// Package drive reads inventory spreadsheets from a Google Drive folder.
package drive

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	mimeCSV         = "text/csv"
	mimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
	mimeFolder      = "application/vnd.google-apps.folder"
)

type Service struct {
	srv *drive.Service
}

// NewService authenticates with a service-account JSON key.
func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}
	return NewServiceWithOptions(ctx, option.WithHTTPClient(config.Client(ctx)))
}

// NewServiceWithOptions builds the client from raw API options.
func NewServiceWithOptions(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

// Format is "csv" or "xlsx" for importable files and "" otherwise. Native
// Google Sheets are exported as xlsx.
func (f *File) Format() string {
	switch f.MimeType {
	case mimeCSV:
		return "csv"
	case mimeXLSX, mimeGoogleSheet:
		return "xlsx"
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "xlsx"
	}
	return ""
}

func fromAPI(f *drive.File) *File {
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
	}
}

// ListFiles returns every non-trashed file directly inside folderID.
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	var files []*File
	err := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		OrderBy("modifiedTime desc").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, fromAPI(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}
	return files, nil
}

// ListSheets keeps only the files an import can read.
func (s *Service) ListSheets(ctx context.Context, folderID string) ([]*File, error) {
	files, err := s.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	sheets := make([]*File, 0, len(files))
	for _, f := range files {
		if f.Format() != "" {
			sheets = append(sheets, f)
		}
	}
	return sheets, nil
}

// Open fetches fileID's metadata and streams its content.
func (s *Service) Open(ctx context.Context, fileID string) (io.ReadCloser, *File, error) {
	meta, err := s.srv.Files.Get(fileID).Fields("id, name, mimeType, modifiedTime, size").Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to stat file %s: %w", fileID, err)
	}
	file := fromAPI(meta)
	if file.Format() == "" {
		return nil, nil, fmt.Errorf("file %s (%s) is not a csv or xlsx sheet", file.Name, file.MimeType)
	}

	if file.MimeType == mimeGoogleSheet {
		resp, err := s.srv.Files.Export(fileID, mimeXLSX).Context(ctx).Download()
		if err != nil {
			return nil, nil, fmt.Errorf("unable to export file %s: %w", fileID, err)
		}
		return resp.Body, file, nil
	}

	resp, err := s.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to download file %s: %w", fileID, err)
	}
	return resp.Body, file, nil
}

// FindFolderByPath walks a slash separated folder path from the Drive root.
func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	currentID := "root"
	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				currentID, strings.ReplaceAll(folder, "'", `\'`), mimeFolder)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}
		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}
		currentID = result.Files[0].Id
	}
	return currentID, nil
}
