package githubapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// API serves the schema-shaped GitHub mock. It answers with fixed seeded
// data; nothing authenticates and nothing mutates.
type API struct {
	Store  *Store
	Logger *slog.Logger
}

// NewAPI builds the mock around a seeded store.
func NewAPI(seed Seed, logger *slog.Logger) *API {
	return &API{
		Store:  NewStore(seed),
		Logger: logger,
	}
}

// Routes constructs the mock's router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/meta", a.handleMeta)
	r.Get("/user", a.handleViewer)
	r.Get("/users/{username}", a.handleUser)
	r.Get("/user/memberships/orgs", a.handleMembershipOrgs)
	r.Get("/orgs/{org}", a.handleOrganization)
	r.Get("/repos/{owner}/{repo}", a.handleRepository)
	r.Get("/repos/{owner}/{repo}/branches", a.handleBranches)
	r.Post("/graphql", a.handleGraphQL)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeNotFound(w)
	})

	return r
}

func (a *API) handleMeta(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, Meta{
		VerifiablePasswordAuthentication: false,
		Web:                              []string{"127.0.0.1/32"},
		API:                              []string{"127.0.0.1/32"},
		Git:                              []string{"127.0.0.1/32"},
	})
}

// handleViewer answers /user with the authenticated account, the first
// seeded user.
func (a *API) handleViewer(w http.ResponseWriter, r *http.Request) {
	viewer, ok := a.Store.Viewer()
	if !ok {
		a.writeNotFound(w)
		return
	}
	a.writeJSON(w, http.StatusOK, viewer)
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := a.Store.UserByLogin(chi.URLParam(r, "username"))
	if !ok {
		a.writeNotFound(w)
		return
	}
	a.writeJSON(w, http.StatusOK, user)
}

// handleMembershipOrgs reports the viewer as an active admin member of every
// seeded organization.
func (a *API) handleMembershipOrgs(w http.ResponseWriter, r *http.Request) {
	viewer, _ := a.Store.Viewer()

	orgs := a.Store.Organizations()
	memberships := make([]Membership, 0, len(orgs))
	for _, org := range orgs {
		memberships = append(memberships, Membership{
			URL:             org.URL + "/memberships/" + viewer.Login,
			State:           "active",
			Role:            "admin",
			OrganizationURL: org.URL,
			User:            viewer,
			Organization:    org,
		})
	}
	a.writeJSON(w, http.StatusOK, memberships)
}

func (a *API) handleOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := a.Store.OrganizationByLogin(chi.URLParam(r, "org"))
	if !ok {
		a.writeNotFound(w)
		return
	}
	a.writeJSON(w, http.StatusOK, org)
}

func (a *API) handleRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := a.Store.Repository(chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
	if !ok {
		a.writeNotFound(w)
		return
	}
	a.writeJSON(w, http.StatusOK, repo)
}

func (a *API) handleBranches(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.Store.Repository(chi.URLParam(r, "owner"), chi.URLParam(r, "repo")); !ok {
		a.writeNotFound(w)
		return
	}
	a.writeJSON(w, http.StatusOK, a.Store.Branches())
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Error("encode response", "error", err)
	}
}

// writeNotFound matches the real API's 404 body.
func (a *API) writeNotFound(w http.ResponseWriter) {
	a.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}
