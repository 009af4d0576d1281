package invitation

type GenerateRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyCodeRequest struct {
	Token string `json:"token" binding:"required"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

type ResendCodeRequest struct {
	Token string `json:"token" binding:"required"`
}

type SignUpRequest struct {
	Token             string `json:"token" binding:"required"`
	FirstName         string `json:"first_name" binding:"required,min=1"`
	LastName          string `json:"last_name" binding:"required,min=1"`
	Password          string `json:"password" binding:"required,min=8"`
	ConfirmPassword   string `json:"confirm_password" binding:"required"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}
