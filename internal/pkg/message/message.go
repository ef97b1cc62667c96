package message

const (
	InvalidUser    = "Invalid username/password."
	InvalidInput   = "Invalid input."
	UnexpectedErr  = "An unexpected error occurred."
	Forbidden      = "You are not allowed to perform this action."
	NotFound       = "The requested resource was not found."
	TooManyRequest = "Too many requests. Please try again later."
	Timeout        = "Request cancelled or timeout."
	EnvErrFmt      = "environment variable is not set: %s"
	ResetSent      = "If the email is registered, a password reset link was sent to it."
	ResetSuccess   = "Password reset successful."

	FmtErrStatusCode = "rec.Code = %d, want: %d"
)
