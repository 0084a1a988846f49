package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/envdash/internal/api/request"
	"github.com/edvin/envdash/internal/api/response"
	"github.com/edvin/envdash/internal/core"
	"github.com/edvin/envdash/internal/model"
)

type Environment struct {
	svc *core.EnvironmentService
}

func NewEnvironment(svc *core.EnvironmentService) *Environment {
	return &Environment{svc: svc}
}

type environmentStatusResponse struct {
	EnvironmentStatus string `json:"environmentStatus"`
}

type linkResponse struct {
	Reachable bool   `json:"reachable"`
	Status    int    `json:"status,omitempty"`
	FinalURL  string `json:"finalUrl,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

type validationResponse struct {
	Domain string             `json:"domain"`
	Status string             `json:"status"`
	Result *model.ProbeResult `json:"result,omitempty"`
}

// Validate classifies one customer's environment, probing it live unless the
// hosting type decides.
//
//	@Summary      Validate environment
//	@Tags         Environments
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.ValidateEnvironment  true  "Customer"
//	@Success      200   {object}  environmentStatusResponse
//	@Failure      400   {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /validate-environment [post]
func (h *Environment) Validate(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateEnvironment
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := h.svc.Classify(r.Context(), core.EnvironmentRequest{
		CustomerID:      int(req.CustomerID),
		Domain:          req.Domain,
		ResidentHosting: bool(req.ResidentHosting),
		ITARHosting:     bool(req.ITARHosting),
	})

	response.WriteJSON(w, http.StatusOK, environmentStatusResponse{EnvironmentStatus: status})
}

// ValidateLink returns the raw probe result for a domain.
//
//	@Summary      Probe link
//	@Tags         Environments
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.ValidateLink  true  "Domain"
//	@Success      200   {object}  linkResponse
//	@Failure      400   {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /validate-link [post]
func (h *Environment) ValidateLink(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateLink
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.svc.ProbeLink(r.Context(), req.Domain)

	response.WriteJSON(w, http.StatusOK, linkResponse{
		Reachable: res.Reachable,
		Status:    res.HTTPStatus,
		FinalURL:  res.FinalURL,
		Reason:    res.Reason,
		Error:     res.Error,
	})
}

// Status returns the cached validation state for a domain without probing.
//
//	@Summary      Validation status
//	@Tags         Environments
//	@Produce      json
//	@Param        domain  path      string  true  "Domain"
//	@Success      200     {object}  validationResponse
//	@Security     BearerAuth
//	@Router       /validation/{domain} [get]
func (h *Environment) Status(w http.ResponseWriter, r *http.Request) {
	domain := model.NormalizeDomain(chi.URLParam(r, "domain"))
	if domain == "" {
		response.WriteError(w, http.StatusBadRequest, "missing domain")
		return
	}

	status, res := h.svc.Lookup(domain)
	response.WriteJSON(w, http.StatusOK, validationResponse{Domain: domain, Status: status, Result: res})
}
