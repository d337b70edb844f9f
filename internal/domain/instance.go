package domain

import "time"

// Instance represents the singleton server instance configuration.
type Instance struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	PublicURL   string    `json:"public_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	HasRootUser bool      `json:"has_root_user"`
	RootUserID  string    `json:"root_user_id,omitempty"`
}

// IsSetupRequired returns true until the first (root) user has been created.
func (i *Instance) IsSetupRequired() bool {
	return !i.HasRootUser
}

// SetRootUser marks the instance as configured with its root user.
func (i *Instance) SetRootUser(userID string) {
	i.HasRootUser = true
	i.RootUserID = userID
}
