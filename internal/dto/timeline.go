package dto

// UpsertTimelineRequest sets the global submission window.
type UpsertTimelineRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}
