package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"golang.org/x/oauth2"
)

const kakaoProfileURL = "https://kapi.kakao.com/v2/user/me"

var kakaoEndpoint = oauth2.Endpoint{
	AuthURL:  "https://kauth.kakao.com/oauth/authorize",
	TokenURL: "https://kauth.kakao.com/oauth/token",
}

// Kakao signs users in with Kakao accounts.
type Kakao struct {
	oauth      *oauth2.Config
	profileURL string
	client     *http.Client
}

func NewKakao(c config.OAuthClient, timeout time.Duration) *Kakao {
	return &Kakao{
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     kakaoEndpoint,
		},
		profileURL: kakaoProfileURL,
		client:     newHTTPClient(timeout),
	}
}

func (k *Kakao) Name() string { return domain.ProviderKakao }

// ExchangeCode returns the Kakao access token for code.
func (k *Kakao) ExchangeCode(ctx context.Context, code string) (string, error) {
	tok, err := k.oauth.Exchange(withClient(ctx, k.client), code)
	if err != nil {
		return "", externalErr(k.Name(), "exchange", err)
	}
	return tok.AccessToken, nil
}

type kakaoProfile struct {
	ID      int64 `json:"id"`
	Account struct {
		Email string `json:"email"`
	} `json:"kakao_account"`
}

func (k *Kakao) FetchProfile(ctx context.Context, accessToken string) (*domain.ExternalProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.profileURL, nil)
	if err != nil {
		return nil, externalErr(k.Name(), "profile", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, externalErr(k.Name(), "profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, externalErr(k.Name(), "profile", fmt.Errorf("status %d", resp.StatusCode))
	}
	var p kakaoProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, externalErr(k.Name(), "profile", err)
	}
	if p.ID == 0 {
		return nil, externalErr(k.Name(), "profile", errors.New("missing id"))
	}
	return &domain.ExternalProfile{
		ExternalID: strconv.FormatInt(p.ID, 10),
		Email:      p.Account.Email,
	}, nil
}
