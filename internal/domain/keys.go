package domain

// Key-value store key layout.
const (
	codeKeyPrefix      = "SMS:"
	attemptsKeyPrefix  = "SMS_ATTEMPTS:"
	verifiedKeyPrefix  = "SMS_VERIFIED:"
	refreshKeyPrefix   = "RT:"
	blacklistKeyPrefix = "BL:"
)

func VerificationCodeKey(phone string) string { return codeKeyPrefix + phone }

// VerificationAttemptsKey counts wrong codes entered against the pending one.
func VerificationAttemptsKey(phone string) string { return attemptsKeyPrefix + phone }

func VerifiedFlagKey(phone string) string { return verifiedKeyPrefix + phone }

func RefreshTokenKey(subject string) string { return refreshKeyPrefix + subject }

func BlacklistKey(accessToken string) string { return blacklistKeyPrefix + accessToken }
