package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saiset-co/sai-request/types"
)

func TestDeriveIdentityIgnoresKeyOrder(t *testing.T) {
	first := map[string]interface{}{}
	first["page"] = 1
	first["size"] = 20
	first["filter"] = map[string]interface{}{"status": "active", "owner": "me"}

	second := map[string]interface{}{}
	second["filter"] = map[string]interface{}{"owner": "me", "status": "active"}
	second["size"] = 20
	second["page"] = 1

	d1 := &types.RequestDescriptor{Method: "get", URL: "/api/orders", Query: first}
	d2 := &types.RequestDescriptor{Method: "GET", URL: "/api/orders", Query: second}

	assert.Equal(t, DeriveIdentity(d1), DeriveIdentity(d2))
}

func TestDeriveIdentityDistinguishesRequests(t *testing.T) {
	base := &types.RequestDescriptor{Method: "POST", URL: "/api/orders", Body: map[string]interface{}{"id": 1}}

	tests := []struct {
		name string
		desc *types.RequestDescriptor
	}{
		{"method", &types.RequestDescriptor{Method: "PUT", URL: "/api/orders", Body: map[string]interface{}{"id": 1}}},
		{"url", &types.RequestDescriptor{Method: "POST", URL: "/api/order", Body: map[string]interface{}{"id": 1}}},
		{"body", &types.RequestDescriptor{Method: "POST", URL: "/api/orders", Body: map[string]interface{}{"id": 2}}},
		{"query", &types.RequestDescriptor{Method: "POST", URL: "/api/orders", Query: map[string]interface{}{"id": 1}, Body: map[string]interface{}{"id": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, DeriveIdentity(base), DeriveIdentity(tt.desc))
		})
	}
}

func TestDeriveIdentityEmptyQueryMatchesNil(t *testing.T) {
	d1 := &types.RequestDescriptor{Method: "GET", URL: "/api/list"}
	d2 := &types.RequestDescriptor{Method: "GET", URL: "/api/list", Query: map[string]interface{}{}}

	assert.Equal(t, DeriveIdentity(d1), DeriveIdentity(d2))
	assert.Equal(t, "", DeriveIdentity(nil))
}

func TestNormalizeStripsEmptyValues(t *testing.T) {
	empty := ""
	name := "alice"
	desc := &types.RequestDescriptor{
		Method: "POST",
		URL:    "/api/users",
		Query:  map[string]interface{}{"q": "", "page": 0, "tag": nil},
		Body: map[string]interface{}{
			"name":     &name,
			"nickname": &empty,
			"email":    "",
			"roles":    []string{},
			"profile":  map[string]interface{}{"bio": ""},
			"active":   false,
		},
	}

	out := Normalize(desc)

	assert.Equal(t, map[string]interface{}{"page": 0}, out.Query)

	body := out.Body.(map[string]interface{})
	assert.Contains(t, body, "name")
	assert.Contains(t, body, "roles")
	assert.Contains(t, body, "active")
	assert.Equal(t, map[string]interface{}{"bio": ""}, body["profile"], "nested values are left alone")
	assert.NotContains(t, body, "nickname")
	assert.NotContains(t, body, "email")

	assert.Len(t, desc.Query, 3, "the input descriptor is not mutated")
}

func TestNormalizeLeavesMultipartAlone(t *testing.T) {
	upload := &types.Multipart{FileName: "a.txt", Fields: map[string]string{"note": ""}}
	out := Normalize(&types.RequestDescriptor{Method: "POST", URL: "/upload", Body: upload})

	assert.Same(t, upload, out.Body)
}
