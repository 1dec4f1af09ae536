package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/utils"
)

var testSecret = []byte("middleware-secret")

func echoActor(t *testing.T, want *models.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		switch {
		case want == nil && ok:
			t.Errorf("unexpected actor %+v", actor)
		case want != nil && (!ok || actor != *want):
			t.Errorf("actor = %+v (%v), want %+v", actor, ok, *want)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	actor := models.Actor{UserID: 5, Role: models.RoleOrganizer}
	token, err := utils.GenerateToken(testSecret, actor, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	h := Authenticate(testSecret)(echoActor(t, &actor))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + token, "", http.StatusNoContent},
		{"query", "", token, http.StatusNoContent},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"tampered", "Bearer " + token + "x", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/"
			if tc.query != "" {
				target += "?access_token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	h := OptionalAuth(testSecret)(echoActor(t, nil))

	req := httptest.NewRequest(http.MethodGet, "/?access_token=garbage", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
