package activities

// CreateDeploymentInput represents input for recording a GitHub deployment
type CreateDeploymentInput struct {
	Repository  string            `json:"repository"`
	Ref         string            `json:"ref"`
	Environment string            `json:"environment"`
	Description string            `json:"description"`
	Production  bool              `json:"production"`
	Payload     map[string]string `json:"payload"`
}

// CreateDeploymentResult represents the result of recording a GitHub deployment
type CreateDeploymentResult struct {
	DeploymentID int64  `json:"deployment_id"`
	URL          string `json:"url"`
	Environment  string `json:"environment"`
}

// UpdateDeploymentStatusInput represents input for updating a GitHub deployment status
type UpdateDeploymentStatusInput struct {
	Repository     string `json:"repository"`
	DeploymentID   int64  `json:"deployment_id"`
	State          string `json:"state"`
	Description    string `json:"description"`
	LogURL         string `json:"log_url"`
	EnvironmentURL string `json:"environment_url"`
}
