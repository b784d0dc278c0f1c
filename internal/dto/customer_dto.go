package dto

type CustomerResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Address       *string `json:"address"`
	LoyaltyPoints int     `json:"loyalty_points"`
	CreatedAt     string  `json:"created_at"`
}
