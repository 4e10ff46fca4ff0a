package shopper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/order"
	"storefront/internal/pricing"
	"storefront/internal/session"
)

const requestTimeout = 15 * time.Second

// API parle à la boutique. Les redirections ne sont pas suivies : la
// réponse 302 porte X-Order-ID et le cookie de session.
type API struct {
	BaseURL string
	Cookie  string
	HTTP    *http.Client
}

func NewAPI(baseURL, cookie string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Cookie:  cookie,
		HTTP: &http.Client{
			Timeout: requestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// StatusError est une réponse inattendue du serveur.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shopper: server answered %d", e.Status)
	}
	return fmt.Sprintf("shopper: server answered %d: %s", e.Status, e.Message)
}

type response struct {
	status  int
	header  http.Header
	body    []byte
	cookie  string
	changed bool
}

func (a *API) do(ctx context.Context, method, path string, payload interface{}) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.Cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: a.Cookie})
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	out := &response{status: resp.StatusCode, header: resp.Header, body: data, cookie: a.Cookie}
	for _, ck := range resp.Cookies() {
		if ck.Name != session.CookieName {
			continue
		}
		out.changed = true
		if ck.MaxAge < 0 {
			out.cookie = ""
		} else {
			out.cookie = ck.Value
		}
	}
	a.Cookie = out.cookie
	return out, nil
}

func (r *response) fail() error {
	var payload struct {
		Error interface{} `json:"error"`
	}
	_ = json.Unmarshal(r.body, &payload)
	msg, _ := payload.Error.(string)
	return &StatusError{Status: r.status, Message: msg}
}

func (r *response) rejected() (*order.Reply, error) {
	var reply order.Reply
	if err := json.Unmarshal(r.body, &reply); err != nil {
		return nil, r.fail()
	}
	return &reply, nil
}

// Snapshot retourne les fiches des produits connus, dans l'ordre demandé.
func (a *API) Snapshot(ctx context.Context, ids []string) ([]pricing.Record, error) {
	resp, err := a.do(ctx, http.MethodGet, "/snapshot?ids="+url.QueryEscape(strings.Join(ids, ",")), nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.fail()
	}
	var payload struct {
		Products []pricing.Record `json:"products"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("shopper: decode snapshot: %w", err)
	}
	return payload.Products, nil
}

type CheckoutResult struct {
	OrderID string
	// Rejected est renseigné quand la saisie est refusée (422).
	Rejected *order.Reply
	// SessionChanged indique qu'une session a été ouverte pour un invité.
	SessionChanged bool
}

func (a *API) Checkout(ctx context.Context, sub order.Submission) (*CheckoutResult, error) {
	resp, err := a.do(ctx, http.MethodPost, "/cart/checkout", sub)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusFound, http.StatusSeeOther:
		return &CheckoutResult{OrderID: resp.header.Get("X-Order-ID"), SessionChanged: resp.changed}, nil
	case http.StatusUnprocessableEntity:
		reply, err := resp.rejected()
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Rejected: reply}, nil
	default:
		return nil, resp.fail()
	}
}

// Signin ouvre une session ; un refus de saisie est retourné sans erreur.
func (a *API) Signin(ctx context.Context, email, password string) (*order.Reply, error) {
	resp, err := a.do(ctx, http.MethodPost, "/signin", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusFound, http.StatusSeeOther:
		return nil, nil
	case http.StatusUnprocessableEntity:
		return resp.rejected()
	default:
		return nil, resp.fail()
	}
}

func (a *API) Logout(ctx context.Context) error {
	resp, err := a.do(ctx, http.MethodPost, "/logout", nil)
	if err != nil {
		return err
	}
	if resp.status >= http.StatusBadRequest {
		return resp.fail()
	}
	a.Cookie = ""
	return nil
}

// Me retourne l'utilisateur de la session et son token, ou nil.
func (a *API) Me(ctx context.Context) (*models.Identity, error) {
	resp, err := a.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.fail()
	}
	var payload struct {
		User  *models.User `json:"user"`
		Token string       `json:"token"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("shopper: decode me: %w", err)
	}
	if payload.User == nil {
		return nil, nil
	}
	return &models.Identity{User: *payload.User, Token: payload.Token}, nil
}

// WebSocketURL dérive l'adresse du canal checkout de BaseURL.
func (a *API) WebSocketURL() (string, error) {
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
