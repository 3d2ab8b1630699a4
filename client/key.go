package client

import (
	"fmt"
	"strings"

	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

// DeriveIdentity builds the cache and dedup key of a request. Map keys are
// sorted at every depth before serialization, so two structurally equal
// descriptors always share an identity.
func DeriveIdentity(desc *types.RequestDescriptor) string {
	if desc == nil {
		return ""
	}

	return strings.Join([]string{
		desc.URL,
		strings.ToUpper(desc.Method),
		canonical(desc.Query),
		canonical(desc.Body),
	}, "&")
}

func canonical(v interface{}) string {
	if v == nil {
		return ""
	}

	if m, ok := v.(map[string]interface{}); ok && len(m) == 0 {
		return ""
	}

	data, err := utils.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}

	return utils.BytesToString(data)
}
