package auth

// OTPRequest asks for a one-time code to be mailed to the user.
type OTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// OTPVerifyRequest exchanges a mailed code for tokens.
type OTPVerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type OTPVerifyResponse RefreshResponse

type RefreshRequest struct {
	OldRefreshToken string `json:"refreshToken" binding:"required"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
