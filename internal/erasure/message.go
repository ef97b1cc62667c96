package erasure

const (
	MsgErased        = "Your account and personal data were erased."
	MsgWrongPassword = "The password is incorrect."
)
