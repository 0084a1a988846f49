package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/envdash/internal/api/request"
	"github.com/edvin/envdash/internal/api/response"
	"github.com/edvin/envdash/internal/core"
)

type Pull struct {
	svc *core.PullService
}

func NewPull(svc *core.PullService) *Pull {
	return &Pull{svc: svc}
}

type recordResponse struct {
	Timestamp string `json:"timestamp"`
}

// Create triggers a backup pull and starts watching the environment.
//
//	@Summary      Pull backup
//	@Tags         Pulls
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.ValidateEnvironment  true  "Customer"
//	@Success      202   {object}  core.PullResult
//	@Success      200   {object}  core.PullResult  "Poll already running"
//	@Failure      400   {object}  response.ErrorResponse
//	@Failure      403   {object}  response.ErrorResponse
//	@Failure      502   {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /pull [post]
func (h *Pull) Create(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateEnvironment
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Pull(r.Context(), core.PullRequest{
		CustomerID:      int(req.CustomerID),
		Domain:          req.Domain,
		ResidentHosting: bool(req.ResidentHosting),
		ITARHosting:     bool(req.ITARHosting),
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if res.AlreadyPolling {
		status = http.StatusOK
	}
	response.WriteJSON(w, status, res)
}

// Record stores the current time as the customer's last pull.
//
//	@Summary      Record pull
//	@Tags         Pulls
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.RecordPull  true  "Customer"
//	@Success      200   {object}  recordResponse
//	@Failure      400   {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /pull/record [post]
func (h *Pull) Record(w http.ResponseWriter, r *http.Request) {
	var req request.RecordPull
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ts := h.svc.Record(int(req.CustomerID))
	response.WriteJSON(w, http.StatusOK, recordResponse{Timestamp: ts})
}

// Poll returns the customer's most recent environment poll.
//
//	@Summary      Get poll
//	@Tags         Pulls
//	@Produce      json
//	@Param        customerId  path      int  true  "Customer ID"
//	@Success      200         {object}  model.PollState
//	@Failure      404         {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /pull/{customerId}/poll [get]
func (h *Pull) Poll(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireCustomerID(chi.URLParam(r, "customerId"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.svc.PollState(id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, st)
}
