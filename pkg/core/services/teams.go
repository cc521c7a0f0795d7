package services

import "github.com/jakechorley/shift-selector/pkg/core/model"

// TeamMember is one active member of a team as shown to its captain
type TeamMember struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
}

// TeamMembers lists the active members of the requester's team. Only the team's captain may ask.
func TeamMembers(auth *AuthResult, teamID string) ([]TeamMember, error) {
	if !auth.User.IsCaptain || auth.User.TeamID() != teamID {
		return nil, model.ErrNotCaptain
	}

	members := []TeamMember{}
	for _, u := range auth.Directory.Users {
		if u.IsCanceled || u.TeamID() != teamID {
			continue
		}
		members = append(members, TeamMember{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Name:      u.MemberName(),
		})
	}
	return members, nil
}
