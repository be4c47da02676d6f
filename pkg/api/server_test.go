package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusforward/caseguard/pkg/access"
	"github.com/focusforward/caseguard/pkg/api"
	"github.com/focusforward/caseguard/pkg/auth"
	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/review"
	"github.com/focusforward/caseguard/pkg/rules"
	"github.com/focusforward/caseguard/pkg/tally"
)

const (
	member   = "dr.rao@example.org"
	outsider = "lapsed@example.org"
)

type fixture struct {
	handler http.Handler
	keys    auth.KeySet
	tallies *tally.MemoryStore
	calls   int
}

func newFixture(t *testing.T, genErr error) *fixture {
	t.Helper()
	f := &fixture{tallies: tally.NewMemoryStore(time.Hour)}

	producer := narrative.ProducerFunc(func(ctx context.Context, note string, c narrative.Context) (narrative.Output, error) {
		f.calls++
		if genErr != nil {
			return narrative.Output{}, genErr
		}
		return narrative.Output{
			Classification:         rules.TierSafe,
			MissingAnchors:         []string{"safety-net advice"},
			Reasoning:              "reasoning",
			SuggestedDocumentation: "document return precautions",
			DefensibleNote:         "rewritten note",
		}, nil
	})
	checker := access.CheckerFunc(func(_ context.Context, email string) bool { return email == member })
	svc, err := review.New(producer, review.WithAccess(checker))
	require.NoError(t, err)

	ks, err := auth.NewHMACKeySet([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	f.keys = ks
	f.handler = api.NewRouter(api.Options{
		Reviewer:  svc,
		Tallies:   f.tallies,
		Validator: auth.NewJWTValidator(ks),
		Versions:  map[string]string{"rule_table": rules.CanonicalVersion},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if email != "" {
		tok, err := auth.IssueToken(context.Background(), f.keys, email, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, rules.CanonicalVersion, body["rule_table"])
}

func TestReview_DangerousDischarge(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/v1/review", member, map[string]any{
		"note": "45M breathless spo2 88 discharged",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "DANGEROUS", got["classification"])
	assert.Len(t, got, 5)
	for _, k := range []string{"missing_anchors", "reasoning", "suggested_documentation", "defensible_note"} {
		assert.Contains(t, got, k)
	}
}

func TestReview_RecordsTallyAfterSuccess(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]any{"note": "35 yr backache painkiller given review", "session_id": "shift-1"}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/review", member, body).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/review", member, body).Code)

	w := f.do(t, http.MethodGet, "/v1/sessions/shift-1/tally", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got tally.Tally
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(2), got.Cases)
	assert.Equal(t, int64(2), got.Classifications.Safe)
	require.NotEmpty(t, got.TopGaps)
	assert.Equal(t, tally.GapCount{Anchor: "safety-net advice", Count: 2}, got.TopGaps[0])
}

func TestReview_Errors(t *testing.T) {
	tests := []struct {
		name   string
		genErr error
		email  string
		body   any
		want   int
		detail string
	}{
		{"no token", nil, "", map[string]any{"note": "chest pain discharged"}, http.StatusUnauthorized, ""},
		{"empty note", nil, member, map[string]any{"note": "   "}, http.StatusBadRequest, "Please paste a case note"},
		{"too long", nil, member, map[string]any{"note": strings.Repeat("a", 3001)}, http.StatusBadRequest, "maximum 3000"},
		{"bad json", nil, member, "not an object", http.StatusBadRequest, "Invalid request body"},
		{"bad session", nil, member, map[string]any{"note": "chest pain discharged", "session_id": "a b"}, http.StatusBadRequest, "session_id"},
		{"no access", nil, outsider, map[string]any{"note": "chest pain discharged"}, http.StatusForbidden, "No active subscription"},
		{"upstream", errors.New("connection reset"), member, map[string]any{"note": "chest pain discharged"}, http.StatusBadGateway, "generation error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.genErr)
			w := f.do(t, http.MethodPost, "/v1/review", tt.email, tt.body)
			require.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			if tt.detail != "" {
				assert.Contains(t, w.Body.String(), tt.detail)
			}
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestReview_DeniedNeverGenerates(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/v1/review", outsider, map[string]any{"note": "chest pain discharged", "session_id": "s1"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.calls)

	tl, err := f.tallies.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, tl.Cases)
}

func TestReview_UpstreamFailureLeavesTallyUntouched(t *testing.T) {
	f := newFixture(t, errors.New("boom"))
	w := f.do(t, http.MethodPost, "/v1/review", member, map[string]any{"note": "chest pain discharged", "session_id": "s1"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	tl, err := f.tallies.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, tl.Cases)
}

func TestClassify(t *testing.T) {
	f := newFixture(t, nil)
	// Classification needs no active grant and makes no generation call.
	w := f.do(t, http.MethodPost, "/v1/classify", outsider, map[string]any{
		"note": "25 yr old chest pain pain killer given discharged",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, f.calls)

	var got struct {
		Verdict    rules.Verdict `json:"verdict"`
		Pending    []string      `json:"pending_investigations"`
		Advisories []struct {
			ID string `json:"id"`
		} `json:"advisories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, rules.TierDangerous, got.Verdict.Tier)
	assert.Equal(t, []rules.RuleID{rules.DischargeChestPainNoCardiac}, got.Verdict.Rules)

	w = f.do(t, http.MethodPost, "/v1/classify", outsider, map[string]any{"note": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTally_InvalidSession(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/v1/sessions/"+strings.Repeat("x", 129)+"/tally", member, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTally_Disabled(t *testing.T) {
	svc, err := review.New(narrative.ProducerFunc(func(context.Context, string, narrative.Context) (narrative.Output, error) {
		return narrative.Output{}, nil
	}))
	require.NoError(t, err)
	ks, err := auth.NewHMACKeySet([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	h := api.NewRouter(api.Options{Reviewer: svc, Validator: auth.NewJWTValidator(ks)})

	tok, err := auth.IssueToken(context.Background(), ks, member, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/tally", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouting(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/nothing", member, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/v1/review", member, nil).Code)
}
