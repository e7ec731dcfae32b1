package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Social identity provider names.
const (
	ProviderKakao  = "kakao"
	ProviderGoogle = "google"
)
