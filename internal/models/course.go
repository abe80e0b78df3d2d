package models

// Course is an active course membership for the authenticated identity.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DisplayName returns the course name with a fallback for unnamed courses.
func (c Course) DisplayName() string {
	if c.Name == "" {
		return "Unnamed Course"
	}
	return c.Name
}
