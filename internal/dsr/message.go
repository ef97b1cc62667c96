package dsr

const (
	MsgSubmitted         = "Request received. Check your inbox to confirm your email address."
	MsgSubmittedVerified = "Request received."
	MsgVerified          = "Your request is confirmed."
	MsgInvalidLink       = "The link is invalid or has expired."
	MsgInvalidState      = "The request cannot be changed in its current state."
	MsgInvalidExtension  = "The extension is not allowed."
	MsgUpdated           = "Request updated."
)
