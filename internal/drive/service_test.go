package drive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func fakeDrive(t *testing.T) *Service {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Query().Get("q"), "'folder-1' in parents")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]any{
				{"id": "1", "name": "stock.csv", "mimeType": "text/csv"},
				{"id": "2", "name": "notes.pdf", "mimeType": "application/pdf"},
				{"id": "3", "name": "Inventory", "mimeType": mimeGoogleSheet},
				{"id": "4", "name": "march.XLSX", "mimeType": "application/octet-stream"},
			},
		})
	})
	mux.HandleFunc("/files/1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") == "media" {
			_, _ = io.WriteString(w, "csv-body")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "1", "name": "stock.csv", "mimeType": "text/csv"})
	})
	mux.HandleFunc("/files/2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "2", "name": "notes.pdf", "mimeType": "application/pdf"})
	})
	mux.HandleFunc("/files/3", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "3", "name": "Inventory", "mimeType": mimeGoogleSheet})
	})
	mux.HandleFunc("/files/3/export", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, mimeXLSX, r.URL.Query().Get("mimeType"))
		_, _ = io.WriteString(w, "xlsx-body")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s, err := NewServiceWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}

func TestFileFormat(t *testing.T) {
	require.Equal(t, "csv", (&File{Name: "a.csv"}).Format())
	require.Equal(t, "xlsx", (&File{Name: "a", MimeType: mimeGoogleSheet}).Format())
	require.Equal(t, "xlsx", (&File{Name: "A.XLSX"}).Format())
	require.Equal(t, "", (&File{Name: "a.pdf", MimeType: "application/pdf"}).Format())
}

func TestListSheets(t *testing.T) {
	s := fakeDrive(t)
	sheets, err := s.ListSheets(context.Background(), "folder-1")
	require.NoError(t, err)

	names := make([]string, 0, len(sheets))
	for _, f := range sheets {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"stock.csv", "Inventory", "march.XLSX"}, names)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s := fakeDrive(t)

	body, file, err := s.Open(ctx, "1")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.Equal(t, "csv-body", string(data))
	require.Equal(t, "csv", file.Format())

	body, file, err = s.Open(ctx, "3")
	require.NoError(t, err)
	data, err = io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.Equal(t, "xlsx-body", string(data))
	require.Equal(t, "xlsx", file.Format())

	_, _, err = s.Open(ctx, "2")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not a csv or xlsx"))
}
