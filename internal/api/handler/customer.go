package handler

import (
	"net/http"

	"github.com/edvin/envdash/internal/api/response"
	"github.com/edvin/envdash/internal/core"
)

type Customer struct {
	svc *core.CustomerService
}

func NewCustomer(svc *core.CustomerService) *Customer {
	return &Customer{svc: svc}
}

// List returns the enriched billable customer list with summary counts.
//
//	@Summary      List customers
//	@Description  Fetches customers from the vendor API and classifies each environment
//	@Tags         Customers
//	@Produce      json
//	@Success      200  {object}  core.EnrichResult
//	@Failure      502  {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /customers [get]
func (h *Customer) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}
