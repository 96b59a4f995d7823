package handler

const (
	errInternalServer = "Internal server error"
	errUserNotFound   = "User not found"
	errDuplicateEmail = "User with this email already exists"
	errCodeExpired    = "Verification code expired, request a new one"
	errCodeInvalid    = "Verification code is incorrect"
)
