package handler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"mediavault/internal/access"
	"mediavault/internal/service"
	"mediavault/internal/validate"
)

// uploadFileResponse is one entry of the batch upload response. Failed
// files report their error in-line instead of failing the whole batch.
type uploadFileResponse struct {
	ID           string `json:"id,omitempty"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	EncryptedURL string `json:"encryptedUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

type uploadResponse struct {
	Success bool                 `json:"success"`
	Files   []uploadFileResponse `json:"files"`
}

type accessResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

type statusResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

type deleteRequest struct {
	UserID string `json:"userId"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// safeFileError maps pipeline errors to user-facing strings without
// exposing internals.
func safeFileError(err error) string {
	switch {
	case errors.Is(err, validate.ErrFileTooLarge):
		return "file exceeds the maximum allowed size"
	case errors.Is(err, validate.ErrUnsupportedType):
		return "unsupported file type"
	default:
		return "upload failed"
	}
}

// UploadMedia handles POST /api/media/upload (multipart/form-data, field
// name: files).
func UploadMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "no files provided")
		}

		userID := c.FormValue("userId")
		if userID == "" {
			return writeError(c, fiber.StatusBadRequest, "USER_ID_REQUIRED", "userId is required")
		}

		fhs := form.File["files"]
		if len(fhs) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "no files provided")
		}

		opts := service.UploadOptions{
			Encrypt:           formBool(c, "encrypt", true),
			GenerateThumbnail: formBool(c, "generateThumbnail", true),
		}

		files := make([]service.UploadFile, 0, len(fhs))
		for _, fh := range fhs {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
			}
			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			files = append(files, service.UploadFile{Name: fh.Filename, ContentType: ct, Data: data})
		}

		results := svc.Upload(c.UserContext(), userID, files, opts)

		resp := uploadResponse{Files: make([]uploadFileResponse, len(results))}
		for i, r := range results {
			fr := uploadFileResponse{
				ID:           r.ID,
				OriginalName: r.OriginalName,
				MimeType:     r.MimeType,
				Size:         r.Size,
				EncryptedURL: r.EncryptedURL,
				ThumbnailURL: r.ThumbnailURL,
			}
			if r.Err != nil {
				fr.Error = safeFileError(r.Err)
			} else {
				resp.Success = true
			}
			resp.Files[i] = fr
		}
		return c.JSON(resp)
	}
}

// AccessMedia handles GET /api/media/access/:mediaId?userId=...
func AccessMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mediaID := c.Params("mediaId")
		userID := c.Query("userId")

		grant, err := svc.Access(c.UserContext(), mediaID, userID)
		if err != nil {
			if errors.Is(err, access.ErrDenied) || errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", deniedMessage)
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		return c.JSON(accessResponse{
			Success:   true,
			URL:       grant.URL,
			ExpiresAt: grant.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// ViewMedia handles GET /api/media/view/:token, serving the decrypted
// bytes for a still-valid grant.
func ViewMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, contentType, err := svc.Resolve(c.Params("token"))
		if err != nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", deniedMessage)
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(data)
	}
}

// DeleteMedia handles DELETE /api/media/:mediaId with body {userId}.
func DeleteMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body deleteRequest
		if err := c.BodyParser(&body); err != nil || body.UserID == "" {
			return writeError(c, fiber.StatusBadRequest, "USER_ID_REQUIRED", "userId is required")
		}

		if err := svc.Delete(c.UserContext(), c.Params("mediaId"), body.UserID); err != nil {
			if errors.Is(err, access.ErrDenied) || errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", deniedMessage)
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(deleteResponse{Success: true, Message: "media deleted"})
	}
}

// MediaStatus handles GET /api/media/status/:mediaId.
func MediaStatus(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.UserContext(), c.Params("mediaId"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", deniedMessage)
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(statusResponse{Success: true, Status: string(st.Status), Progress: st.Progress})
	}
}

// ListMedia handles GET /api/media?userId=&limit=&offset=, returning one
// owner's media records.
func ListMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Query("userId")
		if userID == "" {
			return writeError(c, fiber.StatusBadRequest, "USER_ID_REQUIRED", "userId is required")
		}
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.ListByOwner(c.UserContext(), userID, limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"success": true, "data": res.Items, "total": res.Total})
	}
}

// HealthCheck verifies DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a plain liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

func formBool(c *fiber.Ctx, key string, def bool) bool {
	v := c.FormValue(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
