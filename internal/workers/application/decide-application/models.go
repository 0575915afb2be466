// internal/workers/application/decide-application/models.go
package decideapplication

type Input struct {
	RepresentativeID string `json:"representativeId"`
	ApplicationID    string `json:"applicationId"`
	Approve          bool   `json:"approve"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}
