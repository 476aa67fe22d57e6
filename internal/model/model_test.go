package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestJoinScope(t *testing.T) {
	tests := []struct {
		name  string
		scope []string
		want  string
	}{
		{"nil", nil, ""},
		{"empty", []string{}, ""},
		{"single", []string{"read"}, "read"},
		{"multiple", []string{"read", "write", "admin"}, "read,write,admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinScope(tt.scope); got != tt.want {
				t.Errorf("JoinScope(%v) = %q, want %q", tt.scope, got, tt.want)
			}
		})
	}
}

func TestSplitScope(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single", "read", []string{"read"}},
		{"multiple", "read,write", []string{"read", "write"}},
		{"whitespace kept", " read , write ", []string{" read ", " write "}},
		{"blank entries kept", "read,,write,", []string{"read", "", "write", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitScope(tt.in)
			if got == nil {
				t.Fatal("SplitScope returned nil, want non-nil slice")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitScope(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestScopeRoundTrip(t *testing.T) {
	lists := [][]string{
		{"records:read", "records:write"},
		{" read", "write "},
		{"a", "", "b"},
		{"", "x"},
	}
	for _, scope := range lists {
		if got := SplitScope(JoinScope(scope)); !reflect.DeepEqual(got, scope) {
			t.Errorf("round trip of %q = %q", scope, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Authorizer wire types
// ---------------------------------------------------------------------------

func TestAuthorizerContextMap(t *testing.T) {
	c := &AuthorizerContext{
		UserID:      "user-1",
		Email:       "a@example.com",
		Scope:       "read,write",
		TokenIssuer: "https://issuer.example.com",
	}
	m := c.Map()
	want := map[string]interface{}{
		"userId":      "user-1",
		"email":       "a@example.com",
		"scope":       "read,write",
		"tokenIssuer": "https://issuer.example.com",
	}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("Map() = %v, want %v", m, want)
	}
}

func TestAuthorizerContextMapNil(t *testing.T) {
	var c *AuthorizerContext
	if m := c.Map(); m != nil {
		t.Errorf("nil context Map() = %v, want nil", m)
	}
}

func TestAuthorizerResponseEffect(t *testing.T) {
	var empty AuthorizerResponse
	if got := empty.Effect(); got != EffectDeny {
		t.Errorf("empty Effect() = %q, want %q", got, EffectDeny)
	}

	allow := AuthorizerResponse{
		PolicyDocument: PolicyDocument{
			Version:   PolicyVersion,
			Statement: []Statement{{Action: InvokeAction, Effect: EffectAllow, Resource: "*"}},
		},
	}
	if got := allow.Effect(); got != EffectAllow {
		t.Errorf("Effect() = %q, want %q", got, EffectAllow)
	}
}

func TestAuthorizerResponseJSON(t *testing.T) {
	resp := AuthorizerResponse{
		PrincipalID: "user-1",
		PolicyDocument: PolicyDocument{
			Version:   PolicyVersion,
			Statement: []Statement{{Action: InvokeAction, Effect: EffectAllow, Resource: "arn:x/prod/*/*"}},
		},
		Context: &AuthorizerContext{UserID: "user-1"},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw["principalId"] != "user-1" {
		t.Errorf("principalId = %v", raw["principalId"])
	}
	doc, ok := raw["policyDocument"].(map[string]interface{})
	if !ok {
		t.Fatalf("policyDocument missing: %s", data)
	}
	if doc["Version"] != PolicyVersion {
		t.Errorf("Version = %v, want %s", doc["Version"], PolicyVersion)
	}
	stmts, _ := doc["Statement"].([]interface{})
	if len(stmts) != 1 {
		t.Fatalf("Statement count = %d, want 1", len(stmts))
	}
	stmt := stmts[0].(map[string]interface{})
	if stmt["Action"] != InvokeAction || stmt["Effect"] != "Allow" {
		t.Errorf("Statement = %v", stmt)
	}
}

func TestAuthorizerResponseOmitsNilContext(t *testing.T) {
	data, err := json.Marshal(AuthorizerResponse{PrincipalID: "user"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	if _, ok := raw["context"]; ok {
		t.Errorf("context should be omitted when nil: %s", data)
	}
}

// ---------------------------------------------------------------------------
// Records and envelopes
// ---------------------------------------------------------------------------

func TestRecordJSON(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rec := Record{ID: "rec-1", Name: "first", OwnerID: "user-1", CreatedAt: now, UpdatedAt: now}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	for _, key := range []string{"id", "name", "owner_id", "created_at", "updated_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}

func TestErrorEnvelopeOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(ErrorEnvelope{Error: "Not Found"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"error":"Not Found"}` {
		t.Errorf("envelope = %s", data)
	}
}

func TestListResponseMeta(t *testing.T) {
	resp := ListResponse{
		Resource: []Record{},
		Meta:     &ResponseMeta{Count: 3, Limit: 25, Offset: 0},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw struct {
		Resource []Record     `json:"resource"`
		Meta     ResponseMeta `json:"meta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if raw.Resource == nil || len(raw.Resource) != 0 {
		t.Errorf("resource = %v, want empty array", raw.Resource)
	}
	if raw.Meta.Count != 3 || raw.Meta.Limit != 25 {
		t.Errorf("meta = %+v", raw.Meta)
	}
}
