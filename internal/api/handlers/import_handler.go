package handlers

import (
	"bytes"
	"net/http"

	"github.com/andresuchdata/eisen-inventory/internal/importer"
	"github.com/andresuchdata/eisen-inventory/internal/service"
	"github.com/gin-gonic/gin"
)

type ImportHandler struct {
	service *service.InventoryService
}

func NewImportHandler(service *service.InventoryService) *ImportHandler {
	return &ImportHandler{service: service}
}

// Upload imports the multipart "file" field. The "mode" field selects
// append (default) or replace_all.
func (h *ImportHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "invalid form data")
		return
	}
	defer file.Close()

	mode := importer.ParseMode(c.PostForm("mode"))
	result, err := h.service.ImportUpload(c.Request.Context(), header.Filename, file, mode)
	if err != nil {
		respondError(c, err, "failed to import file")
		return
	}
	c.JSON(http.StatusOK, result)
}

type objectImportRequest struct {
	Key  string `json:"key" validate:"required"`
	Mode string `json:"mode"`
}

func (h *ImportHandler) ImportObject(c *gin.Context) {
	var req objectImportRequest
	if !bindRequest(c, &req) {
		return
	}

	result, err := h.service.ImportObject(c.Request.Context(), req.Key, importer.ParseMode(req.Mode))
	if err != nil {
		respondError(c, err, "failed to import object")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) ListObjects(c *gin.Context) {
	objects, err := h.service.ImportObjects(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		respondError(c, err, "failed to list objects")
		return
	}
	c.JSON(http.StatusOK, objects)
}

type driveImportRequest struct {
	FileID string `json:"file_id" validate:"required"`
	Mode   string `json:"mode"`
}

func (h *ImportHandler) ImportDrive(c *gin.Context) {
	var req driveImportRequest
	if !bindRequest(c, &req) {
		return
	}

	result, err := h.service.ImportDriveFile(c.Request.Context(), req.FileID, importer.ParseMode(req.Mode))
	if err != nil {
		respondError(c, err, "failed to import drive file")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) ListDriveSheets(c *gin.Context) {
	sheets, err := h.service.DriveSheets(c.Request.Context(), c.Query("folder_id"))
	if err != nil {
		respondError(c, err, "failed to list drive sheets")
		return
	}
	c.JSON(http.StatusOK, sheets)
}

// ExportInventory writes every product in the import CSV layout.
func (h *ImportHandler) ExportInventory(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.Request.Context(), &buf); err != nil {
		respondError(c, err, "failed to export inventory")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="inventory.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
