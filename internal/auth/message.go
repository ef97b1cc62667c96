package auth

const (
	MsgLoggedIn         = "Logged in."
	MsgLoggedOut        = "Logged out."
	MsgRefreshed        = "Token refreshed."
	MsgNotVerified      = "Email not yet verified."
	MsgVerifySuccess    = "Verification complete. You can now login."
	MsgRegisterSuccess  = "Thank you for registering. A verification link was sent to your email."
	MsgUserExists       = "User already exists."
	MsgTermsNotAccepted = "You must accept the terms and privacy policy."
)
