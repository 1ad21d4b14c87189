package files

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/daison12006013/docms/internal/platform/httpx"
	"github.com/daison12006013/docms/internal/rbac"
	"github.com/daison12006013/docms/internal/shared"
)

// Uploads are capped to keep a single request from exhausting the host.
const maxUploadBytes = 512 << 20

// Handler manages file manager endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validate: validator.New()}
}

// MountRoutes registers authenticated file manager routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFilesRead))
		r.Get("/", h.listChildren)
		r.Get("/search", h.search)
		r.Get("/{id}", h.getNode)
		r.Get("/{id}/tree", h.tree)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFilesDownload))
		r.Get("/{id}/download", h.download)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFilesCreate))
		r.Post("/folders", h.createFolder)
		r.Post("/upload", h.upload)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFilesUpdate))
		r.Put("/{id}/rename", h.rename)
		r.Put("/{id}/move", h.move)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFilesDelete))
		r.Delete("/{id}", h.deleteNode)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFilesShare))
		r.Post("/{id}/share", h.createShareLink)
		r.Delete("/shares/{id}", h.revokeShareLink)
	})
}

// MountPublicRoutes registers the anonymous share link resolver.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/{token}", h.resolveShare)
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var parentID *int64
	if raw := q.Get("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "parent_id must be numeric")
			return
		}
		parentID = &id
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	nodes, pagination, err := h.service.Children(r.Context(), parentID, q.Get("sort"), page, perPage)
	if err != nil {
		h.fail(w, err, "list children failed")
		return
	}
	if nodes == nil {
		nodes = []Node{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"nodes": nodes, "pagination": pagination})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	nodes, pagination, err := h.service.Search(r.Context(), q.Get("q"), page, perPage)
	if err != nil {
		h.fail(w, err, "search failed")
		return
	}
	if nodes == nil {
		nodes = []Node{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"nodes": nodes, "pagination": pagination})
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	node, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get node failed")
		return
	}
	httpx.JSON(w, http.StatusOK, node)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	nodes, err := h.service.Tree(r.Context(), id)
	if err != nil {
		h.fail(w, err, "tree failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

type createFolderRequest struct {
	ParentID *int64 `json:"parent_id"`
	Name     string `json:"name" validate:"required"`
}

func (h *Handler) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	node, err := h.service.CreateFolder(r.Context(), actorID(r), req.ParentID, req.Name)
	if err != nil {
		h.fail(w, err, "create folder failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, node)
}

// upload accepts multipart form data with a single "file" part and an
// optional "parent_id" field.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "missing file part")
		return
	}
	defer file.Close()

	var parentID *int64
	if raw := r.FormValue("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "parent_id must be numeric")
			return
		}
		parentID = &id
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	node, err := h.service.Upload(r.Context(), actorID(r), parentID, header.Filename, contentType, header.Size, file)
	if err != nil {
		h.fail(w, err, "upload failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, node)
}

type renameRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	node, err := h.service.Rename(r.Context(), actorID(r), id, req.Name)
	if err != nil {
		h.fail(w, err, "rename failed")
		return
	}
	httpx.JSON(w, http.StatusOK, node)
}

type moveRequest struct {
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	node, err := h.service.Move(r.Context(), actorID(r), id, req.ParentID)
	if err != nil {
		h.fail(w, err, "move failed")
		return
	}
	httpx.JSON(w, http.StatusOK, node)
}

func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		h.fail(w, err, "delete failed")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	node, rc, err := h.service.Download(r.Context(), id)
	if err != nil {
		h.fail(w, err, "download failed")
		return
	}
	defer rc.Close()
	h.stream(w, node, rc)
}

type createShareRequest struct {
	TTLHours int `json:"ttl_hours" validate:"omitempty,min=1,max=8760"`
}

func (h *Handler) createShareLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "node id must be numeric")
		return
	}
	var req createShareRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	link, err := h.service.CreateShareLink(r.Context(), actorID(r), id, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		h.fail(w, err, "create share link failed")
		return
	}
	httpx.JSON(w, http.StatusCreated, link)
}

func (h *Handler) revokeShareLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "share link id must be numeric")
		return
	}
	if err := h.service.RevokeShareLink(r.Context(), actorID(r), id); err != nil {
		h.fail(w, err, "revoke share link failed")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) resolveShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	node, rc, err := h.service.ResolveShareLink(r.Context(), token)
	if err != nil {
		// One answer for every failure mode.
		if errors.Is(err, ErrShareLinkInvalid) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "share link is invalid or has expired")
			return
		}
		h.logger.Error("resolve share link failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	defer rc.Close()
	h.stream(w, node, rc)
}

func (h *Handler) stream(w http.ResponseWriter, node Node, rc io.Reader) {
	w.Header().Set("Content-Type", node.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	if node.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(node.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream aborted", slog.String("name", node.Name), slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrNotFolder), errors.Is(err, ErrNotFile), errors.Is(err, ErrCycle):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, ErrNameTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrShareLinkInvalid):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func actorID(r *http.Request) *int64 {
	if actor := rbac.ActorFromContext(r.Context()); actor != nil {
		return &actor.ID
	}
	return nil
}
