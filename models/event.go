package models

type Event struct {
	ID               string  `json:"id,omitempty"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Date             string  `json:"date"`
	Location         string  `json:"location"`
	Price            float64 `json:"price"`
	AvailableTickets int     `json:"available_tickets"`
	ImageURL         string  `json:"image_url"`
	Category         string  `json:"category"`
}
