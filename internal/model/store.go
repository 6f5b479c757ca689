package model

// Store is a venue as listed by GET /stores/.
type Store struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Address         string `json:"address"`
	Description     string `json:"description,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	OpenTime        string `json:"open_time,omitempty"`
	CloseTime       string `json:"close_time,omitempty"`
	TournamentCount int    `json:"tournament_count"`
}

// StoreProfile is the editable store record behind GET/PUT /store/info/.
type StoreProfile struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Address      string `json:"address"`
	PhoneNumber  string `json:"phone_number"`
	OpenTime     string `json:"open_time"`
	CloseTime    string `json:"close_time"`
	ManagerName  string `json:"manager_name"`
	ManagerPhone string `json:"manager_phone"`
	MaxCapacity  int    `json:"max_capacity"`
}
