package api

import (
	"errors"
	"fmt"
	"net/http"

	"docshare/internal/server/database"
	"docshare/internal/server/notify"
	"docshare/internal/server/service"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the docshare API.
type Handler struct {
	auth   *service.AuthService
	docs   *service.DocumentService
	index  *service.IndexBuilder
	mailer *notify.Mailer
	db     *database.DB
}

// NewHandler creates a new handler with the given service dependencies.
func NewHandler(auth *service.AuthService, docs *service.DocumentService, index *service.IndexBuilder, mailer *notify.Mailer, db *database.DB) *Handler {
	return &Handler{auth: auth, docs: docs, index: index, mailer: mailer, db: db}
}

type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup handles POST /signup.
func (h *Handler) HandleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.auth.Signup(c.Request().Context(), req.Name, req.Username, req.Email, req.Password); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Signup successful",
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	token, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"token":   token,
	})
}

// HandleUpload handles POST /upload.
// Accepts a multipart form with "file" and "password" fields. The
// document is bound to the session identity; a "userId" form field, if
// present, must match it.
func (h *Handler) HandleUpload(c echo.Context) error {
	owner := SessionUsername(c)

	if userID := c.FormValue("userId"); userID != "" && userID != owner {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": "userId does not match authenticated session",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	password := c.FormValue("password")

	result, err := h.docs.Upload(
		c.Request().Context(),
		owner,
		fileHeader.Filename,
		src,
		fileHeader.Size,
		password,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleListFiles handles GET /files.
func (h *Handler) HandleListFiles(c echo.Context) error {
	files, err := h.docs.List(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"files": files})
}

type renameRequest struct {
	NewName string `json:"newName"`
}

// HandleRename handles POST /files/:docId/rename.
func (h *Handler) HandleRename(c echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	err := h.docs.Rename(c.Request().Context(), SessionUsername(c), c.Param("docId"), req.NewName)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleDelete handles DELETE /files/:docId.
func (h *Handler) HandleDelete(c echo.Context) error {
	err := h.docs.Delete(c.Request().Context(), SessionUsername(c), c.Param("docId"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

type verifyRequest struct {
	DocID    string `json:"docId"`
	Password string `json:"password"`
}

// HandleVerifyPassword handles POST /verify-password.
func (h *Handler) HandleVerifyPassword(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.docs.VerifyAccess(c.Request().Context(), req.DocID, req.Password); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleDownload handles GET /d/:docId.
// Serves the blob as an attachment after the access gate verifies the
// "password" query parameter.
func (h *Handler) HandleDownload(c echo.Context) error {
	path, name, err := h.docs.Download(c.Request().Context(), c.Param("docId"), c.QueryParam("password"))
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Attachment(path, name)
}

// HandleShared handles GET /shared.
// Returns the shared index aggregate for the public shared view.
func (h *Handler) HandleShared(c echo.Context) error {
	index, err := h.index.Shared(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load shared index"})
	}

	return c.JSON(http.StatusOK, index)
}

type contactRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// HandleContact handles POST /contact.
func (h *Handler) HandleContact(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Email == "" || req.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and message required"})
	}

	if err := h.mailer.SendContact(c.Request().Context(), req.Email, req.Message); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to send message"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Message sent successfully",
	})
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required field"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "File not found"})
	case errors.Is(err, service.ErrUsernameTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "User already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid username or password"})
	case errors.Is(err, service.ErrInvalidSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
	case errors.Is(err, service.ErrInvalidPassword):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid password"})
	case errors.Is(err, service.ErrNotOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not own this document"})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	case errors.Is(err, service.ErrMissingPasswordHash):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "document record is missing its password hash"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
