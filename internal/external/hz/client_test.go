package hz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rfqnorm/backend/pkg/config"
	"github.com/wonny/rfqnorm/backend/pkg/httputil"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

// fakeHZ is a minimal platform: a token endpoint and listOngoing
type fakeHZ struct {
	t *testing.T

	mu           sync.Mutex
	logins       int
	refreshes    int
	failRefresh  bool
	rejectLogin  bool
	expiresIn    interface{}
	unauthorized map[string]bool // tokens answered with HTTP 401
	businessCode map[string]int  // tokens answered with a business code
	issued       []string
	rows         []map[string]interface{}
	bearerTokens []string
}

func (f *fakeHZ) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "api", user)
		assert.Equal(f.t, "Kaminan", pass)
		assert.NoError(f.t, r.ParseForm())

		var token string
		switch r.PostForm.Get("grant_type") {
		case "password":
			assert.Equal(f.t, "desk", r.PostForm.Get("username"))
			assert.Equal(f.t, "user", r.PostForm.Get("user_type"))
			if f.rejectLogin {
				writeJSON(w, map[string]interface{}{"code": 1, "message": "bad credentials"})
				return
			}
			f.logins++
			token = "login-" + string(rune('0'+f.logins))
		case "refresh_token":
			f.refreshes++
			if f.failRefresh {
				writeJSON(w, map[string]interface{}{"code": 1, "message": "refresh expired"})
				return
			}
			token = "refresh-" + string(rune('0'+f.refreshes))
		}

		f.issued = append(f.issued, token)
		data := map[string]interface{}{"access_token": token, "refresh_token": "r-" + token}
		if f.expiresIn != nil {
			data["expires_in"] = f.expiresIn
		}
		writeJSON(w, map[string]interface{}{"code": 0, "data": data})
	})

	mux.HandleFunc(listOngoingPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		token := r.Header.Get("Authorization")[len("Bearer "):]
		f.bearerTokens = append(f.bearerTokens, token)

		if f.unauthorized[token] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if code, ok := f.businessCode[token]; ok {
			writeJSON(w, map[string]interface{}{"code": code, "message": "token expired"})
			return
		}
		writeJSON(w, map[string]interface{}{"code": 200, "data": f.rows})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeHZ) *Client {
	t.Helper()
	f.t = t
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	cfg := config.HZConfig{
		Address:      server.URL + "/",
		Username:     "desk",
		Password:     "secret",
		ClientID:     "api",
		ClientSecret: "Kaminan",
	}
	httpClient := httputil.New(nil, logger.Nop()).DisableRetry()
	c, err := NewClient(cfg, httpClient, logger.Nop())
	require.NoError(t, err)
	return c
}

var sampleRows = []map[string]interface{}{
	{"contractCode": "OTC-1", "varietyCode": "HC", "varietyName": "热卷"},
	{"contractCode": "OTC-2", "varietyCode": "RB", "varietyInfo": map[string]interface{}{"varietyName": "螺纹钢"}},
	{"contractCode": "OTC-3", "varietyCode": 123, "varietyName": "not a code"},
	{"contractCode": "OTC-4", "varietyCode": "CU"},
	{"contractCode": "OTC-5", "varietyCode": "HC", "varietyName": "热轧卷板"},
}

func TestVarietyMap(t *testing.T) {
	f := &fakeHZ{rows: sampleRows, expiresIn: 3600}
	c := newTestClient(t, f)

	got, err := c.VarietyMap(context.Background())
	require.NoError(t, err)

	// later rows win for a repeated code
	assert.Equal(t, map[string]string{"HC": "热轧卷板", "RB": "螺纹钢"}, got)
	assert.Equal(t, []string{"HC", "RB"}, SortedCodes(got))
	assert.Equal(t, 1, f.logins)
}

func TestListOngoing_LooseRows(t *testing.T) {
	f := &fakeHZ{rows: sampleRows, expiresIn: 3600}
	c := newTestClient(t, f)

	rows, err := c.ListOngoing(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, OngoingContract{ContractCode: "OTC-2", VarietyCode: "RB", VarietyName: "螺纹钢"}, rows[1])
	assert.Equal(t, "", rows[2].VarietyCode)
}

func TestToken_ReusedUntilExpiry(t *testing.T) {
	f := &fakeHZ{rows: sampleRows, expiresIn: 3600}
	c := newTestClient(t, f)

	now := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.ListOngoing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(3600*time.Second-tokenSafetyWindow), c.tokenExpiry)

	_, err = c.ListOngoing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.logins)
	assert.Equal(t, 0, f.refreshes)

	// past the safety window: refresh, not a new login
	now = now.Add(59 * time.Minute)
	_, err = c.ListOngoing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.logins)
	assert.Equal(t, 1, f.refreshes)
	assert.Equal(t, []string{"login-1", "login-1", "refresh-1"}, f.bearerTokens)
}

func TestToken_DefaultTTL(t *testing.T) {
	f := &fakeHZ{rows: sampleRows}
	c := newTestClient(t, f)

	now := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.ListOngoing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(defaultTokenTTL), c.tokenExpiry)
}

func TestRequest_HTTP401RefreshesAndRetries(t *testing.T) {
	f := &fakeHZ{
		rows:         sampleRows,
		expiresIn:    3600,
		unauthorized: map[string]bool{"login-1": true},
	}
	c := newTestClient(t, f)

	got, err := c.VarietyMap(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"login-1", "refresh-1"}, f.bearerTokens)
}

func TestRequest_Business401FallsBackToLogin(t *testing.T) {
	f := &fakeHZ{
		rows:         sampleRows,
		expiresIn:    3600,
		failRefresh:  true,
		businessCode: map[string]int{"login-1": codeUnauthorized},
	}
	c := newTestClient(t, f)

	_, err := c.ListOngoing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.logins)
	assert.Equal(t, 1, f.refreshes)
	assert.Equal(t, []string{"login-1", "login-2"}, f.bearerTokens)
}

func TestRequest_GivesUpAfterRetry(t *testing.T) {
	f := &fakeHZ{
		rows:         sampleRows,
		expiresIn:    3600,
		unauthorized: map[string]bool{"login-1": true, "refresh-1": true},
	}
	c := newTestClient(t, f)

	_, err := c.ListOngoing(context.Background())
	require.Error(t, err)

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestLoginFailure(t *testing.T) {
	f := &fakeHZ{rejectLogin: true}
	c := newTestClient(t, f)

	_, err := c.VarietyMap(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginFailed))
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"https://otc.example.com", "https://otc.example.com", false},
		{"  http://10.0.0.5:8080//  ", "http://10.0.0.5:8080", false},
		{"", "", true},
		{"otc.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := normalizeAddress(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{HZ: config.HZConfig{Address: "https://otc.example.com/", RatePerSecond: 5}}

	c, err := NewFromConfig(cfg, nil, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://otc.example.com", c.Address())

	_, err = NewFromConfig(&config.Config{}, nil, logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
