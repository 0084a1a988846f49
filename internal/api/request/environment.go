package request

import "github.com/edvin/envdash/internal/model"

// ValidateEnvironment is the body of a validate-environment or pull request.
type ValidateEnvironment struct {
	CustomerID      model.CustomerID `json:"customerId" validate:"required"`
	Domain          string           `json:"domain"`
	ResidentHosting model.Flag       `json:"residentHosting"`
	ITARHosting     model.Flag       `json:"itarHosting"`
}

type ValidateLink struct {
	Domain string `json:"domain" validate:"required"`
}

type RecordPull struct {
	CustomerID model.CustomerID `json:"customerId" validate:"required"`
}
