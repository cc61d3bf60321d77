package entity

// Method identifies how a verification attempt was made.
type Method int16

const (
	// MethodUnknown means the submitted code matched no recognized shape.
	MethodUnknown Method = 0

	// MethodTOTP means a 6-digit time-based code.
	MethodTOTP Method = 1

	// MethodBackupCode means an 8-character hex backup code.
	MethodBackupCode Method = 2
)

func (m Method) String() string {
	switch m {
	case MethodTOTP:
		return "Totp"
	case MethodBackupCode:
		return "BackupCode"
	default:
		return "Unknown"
	}
}

func (m Method) Ensure() Method {
	switch m {
	case MethodTOTP:
		return MethodTOTP
	case MethodBackupCode:
		return MethodBackupCode
	default:
		return MethodUnknown
	}
}
