package models

// ProviderProfile is the provider-profile payload. Image holds the raw
// reference as sent by the API: an absolute URL, a media-relative path, or
// empty.
type ProviderProfile struct {
	ID         int64    `json:"id"`
	UserID     string   `json:"user_id"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Title      string   `json:"title"`
	Bio        string   `json:"bio"`
	Phone      string   `json:"phone"`
	CountryID  string   `json:"country_id"`
	RegionID   string   `json:"region_id"`
	Skills     []string `json:"skills"`
	HourlyRate float64  `json:"hourly_rate"`
	Image      string   `json:"image"`
	Completion int      `json:"completion"`
	ImageURL   string   `json:"image_url,omitempty"`
	Initials   string   `json:"initials,omitempty"`
}

// User is the session user object.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	SocialAvatar string `json:"social_avatar"`
}

// Region is one entry of a country's region list.
type Region struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CountryID string `json:"country_id"`
}

// Avatar is the displayable avatar: a resolved URL, or initials when no
// source produced one.
type Avatar struct {
	URL      string `json:"url,omitempty"`
	Initials string `json:"initials"`
	Source   string `json:"source,omitempty"`
}
