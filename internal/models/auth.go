package models

type LoginStatus string

const (
	LoginRegistrationRequired LoginStatus = "REGISTRATION_REQUIRED"
	LoginAuthenticated        LoginStatus = "AUTHENTICATED"
)

const TokenTypeBearer = "bearer"

type EDSLoginRequest struct {
	SignedXML string `json:"signed_xml" binding:"required" example:"<ds:Signature xmlns:ds='http://www.w3.org/2000/09/xmldsig#'>...</ds:Signature>"`
}

type EDSLoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	IsNewUser   bool     `json:"is_new_user"`
	Role        UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	Role        UserRole `json:"role"`
}

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email,max=255"`
	Password     string `json:"password" binding:"required,min=6,max=72"`
	FullName     string `json:"full_name" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required,min=10,max=15"`
	Organization string `json:"organization" binding:"omitempty,max=100"`
	Position     string `json:"position" binding:"omitempty,max=100"`
}

// RegistrationData completes the profile of a pending (EDS) user.
type RegistrationData struct {
	Email        string `json:"email" binding:"required,email,max=255" example:"user@example.com"`
	PhoneNumber  string `json:"phone_number" binding:"required,min=10,max=15" example:"+77771234567"`
	FullName     string `json:"full_name" binding:"omitempty,max=255"`
	Organization string `json:"organization" binding:"omitempty,max=100" example:"Example Company"`
	Position     string `json:"position" binding:"omitempty,max=100" example:"Manager"`
}

type RegistrationResponse struct {
	Message     string   `json:"message"`
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	Role        UserRole `json:"role"`
}

// ProfileUpdate: nil means "leave as is".
type ProfileUpdate struct {
	FullName     *string `json:"full_name" binding:"omitempty,max=255"`
	Email        *string `json:"email" binding:"omitempty,email,max=255"`
	PhoneNumber  *string `json:"phone_number" binding:"omitempty,min=10,max=15"`
	Organization *string `json:"organization" binding:"omitempty,max=100"`
	Position     *string `json:"position" binding:"omitempty,max=100"`
	Password     *string `json:"password" binding:"omitempty,min=6,max=72"`
}

// AdminUserCreate: учётная запись, заводимая администратором (без ЭЦП).
type AdminUserCreate struct {
	Email        string   `json:"email" binding:"required,email,max=255"`
	Password     string   `json:"password" binding:"required,min=6,max=72"`
	FullName     string   `json:"full_name" binding:"required,max=255"`
	PhoneNumber  string   `json:"phone_number" binding:"omitempty,min=10,max=15"`
	Organization string   `json:"organization" binding:"omitempty,max=100"`
	Position     string   `json:"position" binding:"omitempty,max=100"`
	Role         UserRole `json:"role" binding:"required" example:"employee"`
}

type StatusUpdateRequest struct {
	Status UserStatus `json:"status" binding:"required"`
}

type RoleUpdateRequest struct {
	Role UserRole `json:"role" binding:"required"`
}
