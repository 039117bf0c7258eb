package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/catalog"
	log "github.com/sirupsen/logrus"
)

// MenuRegistry hands out the cached menu of a branch.
// Satisfied by *catalog.Registry.
type MenuRegistry interface {
	For(branchID int64) *catalog.Menu
}

// MenuHandler serves the branch menu to the terminal.
type MenuHandler struct {
	menus MenuRegistry
}

func NewMenuHandler(menus MenuRegistry) *MenuHandler {
	return &MenuHandler{menus: menus}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted at /branches/{bid}/menu
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type menuItemResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Category    string `json:"category"`
}

// List handles GET /branches/{bid}/menu. It returns available items only;
// a failed refresh falls back to the cached copy when there is one.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	menu := h.menus.For(branchID)
	if err := menu.EnsureFresh(r.Context()); err != nil {
		log.WithError(err).WithField("branch_id", branchID).Warn("menu refresh failed")
		if len(menu.Available()) == 0 {
			writeError(w, http.StatusBadGateway, "menu unavailable")
			return
		}
	}

	items := menu.Available()
	resp := make([]menuItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, menuItemResponse{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price.StringFixed(2),
			Category:    it.Category,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
