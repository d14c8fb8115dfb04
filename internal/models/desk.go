package models

// Desk is a bookable workstation on the floor plan. Desks are loaded from
// the floor-plan YAML at startup and cached on the store; they are not
// persisted.
type Desk struct {
	ID    string `yaml:"id" json:"id"`
	Zone  string `yaml:"zone" json:"zone"`
	Level int    `yaml:"level" json:"level"`
}
