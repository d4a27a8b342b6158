package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hireview.io/internal/auth"
	"hireview.io/internal/guard"
)

// provisionScope derives the scope a creation request demands: provisioning a
// platform admin is a platform-level operation; everything else is scoped to
// the target company.
func provisionScope(in auth.NewPrincipal) auth.Scope {
	if in.Role == auth.RolePlatformAdmin {
		return auth.Scope{Role: auth.RolePlatformAdmin}
	}
	return auth.Scope{Role: auth.RoleCompanyUser, CompanyID: in.CompanyID}
}

// targetScope derives the scope required to touch an existing principal.
func targetScope(required auth.Role, target *auth.Principal) auth.Scope {
	if target.CompanyID == "" {
		return auth.Scope{Role: auth.RolePlatformAdmin}
	}
	return auth.Scope{
		Role:         required,
		CompanyID:    target.CompanyID,
		DepartmentID: target.DepartmentID,
	}
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.NewPrincipal
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !a.guard.Authorize(w, r, provisionScope(req)) {
		return
	}
	actor, _ := auth.CurrentFromContext(r.Context())

	principal, err := a.service.CreatePrincipal(r.Context(), actor, req, guard.SourceAddr(r))
	if err != nil {
		a.guard.Reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, principal)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor, _ := auth.CurrentFromContext(r.Context())

	target, err := a.service.GetPrincipal(r.Context(), id)
	if err != nil {
		a.guard.Reject(w, r, err)
		return
	}
	// Reading yourself is always allowed; anyone else needs department-level
	// scope on the target. A denied read answers like a missing id so the
	// response never reveals whether a principal exists outside the caller's
	// scope.
	if target.ID != actor.ID {
		if !a.guard.AuthorizeResource(w, r, targetScope(auth.RoleDepartmentUser, target)) {
			return
		}
	}
	writeJSON(w, http.StatusOK, target)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := a.service.GetPrincipal(r.Context(), id)
	if err != nil {
		a.guard.Reject(w, r, err)
		return
	}
	// Status changes are a company-level operation within the target's
	// tenant; platform admins reach across tenants. Department scope never
	// suffices here, so the derived scope drops the department. Denials
	// answer like a missing id.
	scope := auth.Scope{Role: auth.RoleCompanyUser, CompanyID: target.CompanyID}
	if target.CompanyID == "" {
		scope = auth.Scope{Role: auth.RolePlatformAdmin}
	}
	if !a.guard.AuthorizeResource(w, r, scope) {
		return
	}
	actor, _ := auth.CurrentFromContext(r.Context())

	updated, err := a.service.SetPrincipalStatus(r.Context(), actor, id, req.Status, guard.SourceAddr(r))
	if err != nil {
		a.guard.Reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
