package httpapi

import (
	"net/http"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/storage"
)

func viewFromPath(raw string) (storage.HierarchyType, error) {
	switch raw {
	case "function":
		return storage.HierarchyFunction, nil
	case "organization":
		return storage.HierarchyOrganization, nil
	default:
		return "", core.NewError("httpapi.viewFromPath", core.KindValidationFailed, "view must be function or organization", nil)
	}
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	view, err := viewFromPath(r.PathValue("view"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tree, err := s.Store.GetTree(r.Context(), view)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tree": tree})
}

func (s *Server) handleSubtree(w http.ResponseWriter, r *http.Request) {
	view, err := viewFromPath(r.PathValue("view"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subtree, err := s.Store.GetSubtree(r.Context(), view, r.PathValue("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subtree": subtree})
}

// handleTreeNode resolves a single dotted code to its node record plus its
// ancestry path, used by the tree UI's breadcrumb (spec.md §6).
func (s *Server) handleTreeNode(w http.ResponseWriter, r *http.Request) {
	view, err := viewFromPath(r.PathValue("view"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := r.PathValue("code")

	node, err := s.Store.FindNodeByHierarchyCode(r.Context(), view, code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ancestry, err := s.Store.GetAncestryPath(r.Context(), view, node.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"node": node, "ancestry": ancestry})
}
