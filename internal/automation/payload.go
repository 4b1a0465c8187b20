package automation

import (
	"github.com/groupkit/autopost/internal/pending"
	"github.com/groupkit/autopost/internal/profile"
)

// Payload defaults applied when a profile leaves fields empty
const (
	defaultTitle      = "Untitled Event"
	defaultCategory   = "hangout"
	defaultAccessType = "public"
)

// EventPayload is the fully resolved body sent to the event-creation
// collaborator. It is rebuilt from the live profile at publish time so
// profile edits made after the pending event was computed still apply.
type EventPayload struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	AccessType       string   `json:"accessType"`
	Languages        []string `json:"languages,omitempty"`
	Platforms        []string `json:"platforms,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	ImageID          string   `json:"imageId,omitempty"`
	ImageURL         string   `json:"imageUrl,omitempty"`
	RoleIDs          []string `json:"roleIds,omitempty"`
	SendNotification bool     `json:"sendCreationNotification"`
}

// buildPayload assembles the payload from the profile definition, then
// overlays any non-nil manual override fields
func buildPayload(p *profile.Profile, ov *pending.Overrides) EventPayload {
	payload := EventPayload{
		Title:            p.Name,
		Description:      p.Description,
		Category:         p.Category,
		AccessType:       p.AccessType,
		Languages:        p.Languages,
		Platforms:        p.Platforms,
		Tags:             p.Tags,
		ImageID:          p.ImageID,
		ImageURL:         p.ImageURL,
		RoleIDs:          p.RoleIDs,
		SendNotification: p.SendNotification,
	}

	if payload.Title == "" {
		payload.Title = defaultTitle
	}
	if payload.Category == "" {
		payload.Category = defaultCategory
	}
	if payload.AccessType == "" {
		payload.AccessType = defaultAccessType
	}

	if ov == nil {
		return payload
	}

	if ov.Title != nil {
		payload.Title = *ov.Title
	}
	if ov.Description != nil {
		payload.Description = *ov.Description
	}
	if ov.Category != nil {
		payload.Category = *ov.Category
	}
	if ov.AccessType != nil {
		payload.AccessType = *ov.AccessType
	}
	if ov.Languages != nil {
		payload.Languages = ov.Languages
	}
	if ov.Platforms != nil {
		payload.Platforms = ov.Platforms
	}
	if ov.Tags != nil {
		payload.Tags = ov.Tags
	}
	if ov.ImageID != nil {
		payload.ImageID = *ov.ImageID
	}
	if ov.ImageURL != nil {
		payload.ImageURL = *ov.ImageURL
	}
	if ov.RoleIDs != nil {
		payload.RoleIDs = ov.RoleIDs
	}
	if ov.SendNotification != nil {
		payload.SendNotification = *ov.SendNotification
	}

	return payload
}
