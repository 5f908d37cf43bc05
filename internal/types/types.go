package types

type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type OptionRequest struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

type ProfileRequest struct {
	Age    int    `json:"age" validate:"gte=0,lte=120"`
	Gender string `json:"gender" validate:"required"`
	Menses string `json:"menses"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProfileView is the sidebar form: current values plus the allowed choices.
type ProfileView struct {
	Age           int      `json:"age"`
	Gender        string   `json:"gender"`
	Menses        string   `json:"menses"`
	Genders       []string `json:"genders"`
	MensesOptions []string `json:"mensesOptions"`
	ShowMenses    bool     `json:"showMenses"`
	MinAge        int      `json:"minAge"`
	MaxAge        int      `json:"maxAge"`
}

// SessionView is everything the page needs to render a consultation.
type SessionView struct {
	SessionID      string      `json:"sessionId"`
	Phase          string      `json:"phase"`
	Messages       []Message   `json:"messages"`
	Placeholder    string      `json:"placeholder"`
	QuickOptions   []string    `json:"quickOptions"`
	FAQ            []string    `json:"faq"`
	CanAnalyze     bool        `json:"canAnalyze"`
	AnalyzeLabel   string      `json:"analyzeLabel"`
	Busy           bool        `json:"busy"`
	Profile        ProfileView `json:"profile"`
	HasServerKey   bool        `json:"hasServerKey"`
	AllowClientKey bool        `json:"allowClientKey"`
	// MissingKeyNotice is shown next to a disabled analyze button.
	MissingKeyNotice string `json:"missingKeyNotice"`
	Model            string `json:"model"`
	ReportsEnabled   bool   `json:"reportsEnabled"`
}
