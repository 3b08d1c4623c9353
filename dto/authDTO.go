package dto

type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignupRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	CaptchaToken string `json:"captchaToken"`
}

type ResetPasswordOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Reference string `json:"ref" binding:"required"`
	OTP       string `json:"otp" binding:"required"`
	Password  string `json:"password" binding:"required"`
}
